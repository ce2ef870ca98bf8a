package fdsnws

import (
	"fmt"
	"sort"
	"time"
)

// Resolve merges the explicit arguments of a call with its keyword arguments
// into one canonical parameter set.
//
// Explicit arguments are the typed, named arguments of an operation; empty
// ones are treated as not given. Keyword arguments may use aliases and keep
// empty strings, which is how a blank location code is requested; nil
// keyword values are dropped. Any
// parameter given twice, through an alias or otherwise, is rejected before
// type validation takes place.
func (s *Schema) Resolve(service string, explicit, keyword Args) (Parameters, error) {
	if !IsService(service) {
		return nil, unknownServiceError(service)
	}

	// Iterate in a stable order so the reported conflict is deterministic.
	keys := make([]string, 0, len(keyword))
	for key := range keyword {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		canonical, isAlias := Aliases[key]
		if !isAlias {
			continue
		}
		if !isEmpty(explicit[canonical]) {
			return nil, duplicateParameterError(key, canonical)
		}
		if _, both := keyword[canonical]; both {
			return nil, duplicateParameterError(key, canonical)
		}
	}

	params := make(Parameters, len(keyword)+len(explicit))
	for _, key := range keys {
		value := keyword[key]
		if deref(value) == nil {
			continue
		}
		if canonical, isAlias := Aliases[key]; isAlias {
			key = canonical
		}
		params[key] = value
	}

	for _, spec := range s.services[service] {
		value, ok := explicit[spec.Name]
		if !ok || isEmpty(value) {
			continue
		}
		if _, dup := params[spec.Name]; dup {
			return nil, duplicateParameterError(spec.Name, spec.Name)
		}
		params[spec.Name] = value
	}

	return params, nil
}

func duplicateParameterError(alias, canonical string) error {
	return newError(KindInvalidRequest, 0,
		fmt.Sprintf("duplicate parameter: %s, %s", alias, canonical), "")
}

func unknownServiceError(service string) error {
	return newError(KindInvalidRequest, 0,
		fmt.Sprintf("service '%s' not allowed, allowed services: %s, %s",
			service, ServiceDataselect, ServiceStation), "")
}

// isEmpty reports whether an explicit argument counts as not given.
func isEmpty(v any) bool {
	switch x := deref(v).(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []byte:
		return len(x) == 0
	case time.Time:
		return x.IsZero()
	}
	return false
}
