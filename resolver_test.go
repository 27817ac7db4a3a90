package weave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingredient interface {
	Describe() string
}

type sauceBechamel struct{}

func (s *sauceBechamel) Describe() string { return "bechamel" }

type steakSirloin struct{}

func (s *steakSirloin) Describe() string { return "sirloin" }

type course struct {
	Sauce ingredient `inject:"name=sauce"`
	Steak ingredient `inject:"name=steak"`
}

type pantry struct {
	Stock []ingredient `inject:""`
}

type seasonal struct {
	Main  ingredient `inject:""`
	Extra ingredient `inject:"optional"`
	Label string
}

func TestResolve_QualifiedMembers(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&sauceBechamel{}).Named("sauce")
	Bind[ingredient](k).To(&steakSirloin{}).Named("steak")
	Bind[*course](k).ToSelf()

	c := Get[*course](k)
	require.NotNil(t, c.Sauce)
	require.NotNil(t, c.Steak)
	assert.IsType(t, &sauceBechamel{}, c.Sauce)
	assert.IsType(t, &steakSirloin{}, c.Steak)
}

func TestResolve_ConditionOnTargetName(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&sauceBechamel{}).WhenTargetNamed("Sauce")
	Bind[ingredient](k).To(&steakSirloin{}).WhenTargetNamed("Steak")

	type plate struct {
		Sauce ingredient `inject:""`
		Steak ingredient `inject:""`
	}
	Bind[*plate](k).ToSelf()

	p := Get[*plate](k)
	assert.IsType(t, &sauceBechamel{}, p.Sauce)
	assert.IsType(t, &steakSirloin{}, p.Steak)
}

func TestResolve_ConditionOnOwner(t *testing.T) {
	k := New()

	type frenchDish struct {
		Base ingredient `inject:""`
	}
	type texanDish struct {
		Base ingredient `inject:""`
	}

	Bind[ingredient](k).To(&sauceBechamel{}).WhenInjectedInto((*frenchDish)(nil))
	Bind[ingredient](k).To(&steakSirloin{}).WhenInjectedInto((*texanDish)(nil))
	Bind[*frenchDish](k).ToSelf()
	Bind[*texanDish](k).ToSelf()

	assert.IsType(t, &sauceBechamel{}, Get[*frenchDish](k).Base)
	assert.IsType(t, &steakSirloin{}, Get[*texanDish](k).Base)

	// At the root there is no injection target, so neither condition holds.
	_, err := GetWithError[ingredient](k)
	var nbe *NoBindingError
	require.ErrorAs(t, err, &nbe)
}

func TestResolve_ArgumentOverrideTakesPrecedence(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&sauceBechamel{}).Named("sauce")
	Bind[ingredient](k).To(&steakSirloin{}).Named("steak")
	override := &steakSirloin{}
	Bind[*course](k).ToSelf().WithArgument("Sauce", override)

	c := Get[*course](k)
	assert.Same(t, override, c.Sauce)
	assert.IsType(t, &steakSirloin{}, c.Steak)
}

func TestResolve_ArgumentOverrideProvider(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&steakSirloin{}).Named("steak")
	Bind[*course](k).ToSelf().WithArgument("Sauce", Provider(func(ctx *Context) (any, error) {
		assert.Equal(t, "Sauce", ctx.Target().Name)
		return &sauceBechamel{}, nil
	}))

	c := Get[*course](k)
	assert.IsType(t, &sauceBechamel{}, c.Sauce)
}

func TestResolve_PropertyOverride(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&sauceBechamel{})
	Bind[*seasonal](k).ToSelf().WithProperty("Label", "winter menu")

	s := Get[*seasonal](k)
	assert.Equal(t, "winter menu", s.Label)
	assert.IsType(t, &sauceBechamel{}, s.Main)
}

func TestResolve_PropertyOverrideSuppressesInjection(t *testing.T) {
	k := New()
	// No ingredient bound at all: the overridden member must not attempt
	// resolution.
	fixed := &steakSirloin{}
	Bind[*seasonal](k).ToSelf().
		WithArgument("Main", fixed).
		WithProperty("Label", "fixed")

	s := Get[*seasonal](k)
	assert.Same(t, fixed, s.Main)
	assert.Nil(t, s.Extra)
}

func TestResolve_UnknownArgumentFails(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&sauceBechamel{})
	Bind[*seasonal](k).ToSelf().WithArgument("NoSuchMember", &steakSirloin{})

	_, err := GetWithError[*seasonal](k)
	var ae *ActivationError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Error(), "NoSuchMember")
}

func TestResolve_UnknownPropertyFails(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&sauceBechamel{})
	Bind[*seasonal](k).ToSelf().WithProperty("NoSuchField", 1)

	_, err := GetWithError[*seasonal](k)
	var ae *ActivationError
	require.ErrorAs(t, err, &ae)
}

func TestResolve_OptionalMemberLeftZero(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&sauceBechamel{}).WhenTargetNamed("Main")
	Bind[*seasonal](k).ToSelf()

	s := Get[*seasonal](k)
	require.NotNil(t, s.Main)
	assert.Nil(t, s.Extra)
}

func TestResolve_CollectionMember(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&sauceBechamel{}).Named("sauce")
	Bind[ingredient](k).To(&steakSirloin{}).Named("steak")
	Bind[*pantry](k).ToSelf()

	p := Get[*pantry](k)
	require.Len(t, p.Stock, 2)
	assert.IsType(t, &sauceBechamel{}, p.Stock[0])
	assert.IsType(t, &steakSirloin{}, p.Stock[1])
}

func TestGetAll_RegistrationOrder(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&steakSirloin{})
	Bind[ingredient](k).To(&sauceBechamel{})

	all := GetAll[ingredient](k)
	require.Len(t, all, 2)
	assert.IsType(t, &steakSirloin{}, all[0])
	assert.IsType(t, &sauceBechamel{}, all[1])
}

type cycleA struct {
	B *cycleB `inject:""`
}

type cycleB struct {
	A *cycleA `inject:""`
}

func TestResolve_CycleDetected(t *testing.T) {
	k := New()
	Bind[*cycleA](k).ToSelf()
	Bind[*cycleB](k).ToSelf()

	_, err := GetWithError[*cycleA](k)
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.GreaterOrEqual(t, len(ce.Path), 3)
	assert.Equal(t, ce.Path[0], ce.Path[len(ce.Path)-1])
}

type nestedBasket struct {
	Contents []ingredient `inject:""`
}

func (b *nestedBasket) Describe() string { return "basket" }

func TestResolve_CollectionMemberCycleDetected(t *testing.T) {
	k := New()
	// The basket is itself an ingredient, so filling its Contents slice
	// requests the basket again. This must surface as a CycleError even for
	// a scoped binding, whose creation gate would otherwise be re-entered.
	Bind[ingredient](k).To(&nestedBasket{}).InSingletonScope()

	_, err := GetWithError[ingredient](k)
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ce.Path[0], ce.Path[len(ce.Path)-1])
}

func TestResolve_StructContractBoundToSelf(t *testing.T) {
	k := New()
	Bind[ingredient](k).To(&sauceBechamel{})
	Bind[seasonal](k).ToSelf().WithProperty("Label", "by value")

	s := Get[seasonal](k)
	assert.Equal(t, "by value", s.Label)
	assert.IsType(t, &sauceBechamel{}, s.Main)
}

func TestResolve_MissingImplementationFails(t *testing.T) {
	k := New()
	Bind[ingredient](k) // interface contract, no To

	_, err := GetWithError[ingredient](k)
	var ae *ActivationError
	require.ErrorAs(t, err, &ae)
}
