package domain

// FieldNames is an ordered list of model attribute names.
type FieldNames []string

func (f FieldNames) Has(name string) bool {
	for _, i := range f {
		if i == name {
			return true
		}
	}
	return false
}

func (f FieldNames) Union(names FieldNames) FieldNames {
	res := f.Clone()
	m := make(map[string]bool, len(f))
	for _, item := range f {
		m[item] = true
	}
	for _, item := range names {
		if !m[item] {
			m[item] = true
			res = append(res, item)
		}
	}
	return res
}

func (f FieldNames) Intersection(names FieldNames) FieldNames {
	m := make(map[string]bool)
	for _, item := range names {
		m[item] = true
	}
	res := FieldNames{}
	for _, item := range f {
		if m[item] {
			res = append(res, item)
		}
	}
	return res
}

// Missing returns names which are not present in the given list.
func (f FieldNames) Missing(all FieldNames) FieldNames {
	return f.Filter(func(name string) bool {
		return !all.Has(name)
	})
}

func (f FieldNames) Clone() FieldNames {
	if f == nil {
		return FieldNames{}
	}
	c := make(FieldNames, len(f))
	copy(c, f)
	return c
}

func (f FieldNames) Filter(test func(item string) bool) FieldNames {
	res := make(FieldNames, 0)
	for _, v := range f {
		if test(v) {
			res = append(res, v)
		}
	}
	return res
}
