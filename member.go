package weave

import (
	"reflect"
	"strings"
	"sync"
)

// Member describes one injectable member of an implementation type: the
// struct field itself plus the qualifier and optionality its metadata
// declares.
type Member struct {
	Field     reflect.StructField
	Qualifier string
	Optional  bool
}

// MemberSource reports which members of a type should be filled by the
// kernel during activation. The default source reads `inject` struct tags;
// supply a different source through WithMemberSource to drive injection from
// other metadata.
type MemberSource interface {
	InjectableMembers(t reflect.Type) []Member
}

// tagMemberSource is the default MemberSource. It recognizes:
//
//	Logger Logger `inject:""`              basic injection
//	Cache  Cache  `inject:"optional"`      left zero-valued when unbound
//	Sauce  Ingredient `inject:"name=hot"`  qualified injection
//	Skip   Thing  `inject:"-"`             never injected
//
// Scans are cached per type; struct shape is immutable at runtime so the
// cache never invalidates.
type tagMemberSource struct {
	cache sync.Map // reflect.Type -> []Member
}

func (s *tagMemberSource) InjectableMembers(t reflect.Type) []Member {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := s.cache.Load(t); ok {
		return cached.([]Member)
	}
	var members []Member
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			tag, present := f.Tag.Lookup("inject")
			if !present || !f.IsExported() {
				continue
			}
			qualifier, optional, skip := parseInjectTag(tag)
			if skip {
				continue
			}
			members = append(members, Member{Field: f, Qualifier: qualifier, Optional: optional})
		}
	}
	actual, _ := s.cache.LoadOrStore(t, members)
	return actual.([]Member)
}

// parseInjectTag splits an inject tag into its options. Unknown options are
// ignored.
func parseInjectTag(tag string) (qualifier string, optional bool, skip bool) {
	if tag == "-" {
		return "", false, true
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "optional":
			optional = true
		case strings.HasPrefix(part, "name="):
			qualifier = strings.TrimPrefix(part, "name=")
		}
	}
	return qualifier, optional, false
}
