package weave

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NamedBindingMatchesUnqualifiedRequest(t *testing.T) {
	k := New()
	Bind[testWidget](k).To(&testWidgetImpl{}).Named("only")

	// A single binding survives the unqualified lookup even though it
	// carries a name.
	w, err := GetWithError[testWidget](k)
	require.NoError(t, err)
	assert.IsType(t, &testWidgetImpl{}, w)
}

func TestRegistry_ConditionExcludesCandidate(t *testing.T) {
	k := New()
	Bind[testWidget](k).To(&testWidgetImpl{})
	Bind[testWidget](k).To(&otherWidgetImpl{}).When(func(ctx *Context) bool {
		return false
	})

	w, err := GetWithError[testWidget](k)
	require.NoError(t, err)
	assert.IsType(t, &testWidgetImpl{}, w)
}

func TestRegistry_ConditionReceivesRequestContext(t *testing.T) {
	k := New()
	var seen *Context
	Bind[testWidget](k).To(&testWidgetImpl{}).When(func(ctx *Context) bool {
		seen = ctx
		return true
	})

	Get[testWidget](k)
	require.NotNil(t, seen)
	assert.Equal(t, typeOf[testWidget](), seen.Contract())
	assert.True(t, seen.IsRoot())
}

func TestRegistry_QualifierFiltersBeforeConditions(t *testing.T) {
	k := New()
	conditionRan := false
	Bind[testWidget](k).To(&testWidgetImpl{}).Named("a").When(func(ctx *Context) bool {
		conditionRan = true
		return true
	})
	Bind[testWidget](k).To(&otherWidgetImpl{}).Named("b")

	w := GetNamed[testWidget](k, "b")
	assert.IsType(t, &otherWidgetImpl{}, w)
	assert.False(t, conditionRan)
}

type convWidgetRed struct {
	hue int
}

func (w *convWidgetRed) Val() int { return w.hue + 1 }

type convWidgetBlue struct {
	hue int
}

func (w *convWidgetBlue) Val() int { return w.hue + 2 }

type convNotAWidget struct{}

func TestRegistry_BindAllByConvention(t *testing.T) {
	k := New()
	src := Types(&convWidgetRed{}, &convWidgetBlue{}, &convNotAWidget{})

	n := BindAll[testWidget](k, src, nil)
	assert.Equal(t, 2, n)

	all := GetAll[testWidget](k)
	require.Len(t, all, 2)
	assert.IsType(t, &convWidgetRed{}, all[0])
	assert.IsType(t, &convWidgetBlue{}, all[1])
}

func TestRegistry_BindAllWithNameFilter(t *testing.T) {
	k := New()
	src := Types(&convWidgetRed{}, &convWidgetBlue{})

	n := BindAll[testWidget](k, src, func(t reflect.Type) bool {
		return strings.HasSuffix(t.Name(), "Red")
	})
	assert.Equal(t, 1, n)

	w := Get[testWidget](k)
	assert.IsType(t, &convWidgetRed{}, w)
}

func TestRegistry_BindAllRegistersTransients(t *testing.T) {
	k := New()
	BindAll[testWidget](k, Types(&convWidgetRed{}), nil)

	w1 := Get[testWidget](k)
	w2 := Get[testWidget](k)
	assert.NotSame(t, w1, w2)
}

func TestRegistry_HasAndContracts(t *testing.T) {
	k := New()
	assert.False(t, k.registry.has(typeOf[testWidget]()))

	Bind[testWidget](k).To(&testWidgetImpl{})
	assert.True(t, k.registry.has(typeOf[testWidget]()))
	assert.Contains(t, k.registry.contracts(), typeOf[testWidget]())
}
