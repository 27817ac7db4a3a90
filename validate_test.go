package weave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_CleanGraph(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&sauceBechamel{}).Named("sauce")
	Bind[ingredient](k).To(&steakSirloin{}).Named("steak")
	Bind[*course](k).ToSelf()

	assert.NoError(t, k.Validate())
}

func TestValidate_ReportsMissingMember(t *testing.T) {
	k := New()
	Bind[*course](k).ToSelf() // no ingredient bindings at all

	err := k.Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)

	var nbe *NoBindingError
	require.ErrorAs(t, ve.Errors[0], &nbe)
	assert.Equal(t, typeOf[ingredient](), nbe.Contract)
}

func TestValidate_OptionalMemberNotReported(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&sauceBechamel{}).WhenTargetNamed("Main")
	Bind[*seasonal](k).ToSelf()

	assert.NoError(t, k.Validate())
}

func TestValidate_ArgumentOverrideSatisfiesMember(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&steakSirloin{}).Named("steak")
	Bind[*course](k).ToSelf().WithArgument("Sauce", &sauceBechamel{})

	assert.NoError(t, k.Validate())
}

func TestValidate_ReportsCycle(t *testing.T) {
	k := New()
	Bind[*cycleA](k).ToSelf()
	Bind[*cycleB](k).ToSelf()

	err := k.Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.NotEmpty(t, ve.Errors)
	assert.Contains(t, ve.Errors[0].Error(), "requires itself")
}

func TestValidate_CollectionMemberWalksAllCandidates(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&sauceBechamel{}).Named("sauce")
	Bind[ingredient](k).To(&steakSirloin{}).Named("steak")
	Bind[*pantry](k).ToSelf()

	assert.NoError(t, k.Validate())
}

func TestValidate_FactoryBindingsNotWalked(t *testing.T) {
	k := New()
	// The factory pulls its dependency at activation time; Validate has no
	// visibility into it and must not flag anything.
	Bind[*course](k).ToFactory(func(ctx *Context) (*course, error) {
		return &course{}, nil
	})

	assert.NoError(t, k.Validate())
}
