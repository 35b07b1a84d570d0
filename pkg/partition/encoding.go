package partition

// splitEncodingDirectives separates column-specific directives from the
// single allowed default directive.
func splitEncodingDirectives(encs []EncodingDirective) (nondef []EncodingDirective, def *EncodingDirective, err error) {
	for i := range encs {
		e := encs[i]
		if e.Default {
			if def != nil {
				return nil, nil, &SpecError{
					Kind:    ErrDuplicateDefault,
					Message: "DEFAULT COLUMN ENCODING clause specified more than once for partition",
					Loc:     e.Loc,
				}
			}
			def = &e
		} else {
			nondef = append(nondef, e)
		}
	}
	return nondef, def, nil
}

// mergeEncodingDirectives folds a broader configuration level into an
// element's directive list, returning a new list. An element directive
// naming a column always wins over a configuration directive for the
// same column; configuration directives for unmentioned columns are
// appended; the configuration default applies only when the element has
// no default of its own.
func mergeEncodingDirectives(elem, config []EncodingDirective) ([]EncodingDirective, error) {
	if len(config) == 0 {
		return elem, nil
	}
	if len(elem) == 0 {
		return config, nil
	}

	elemNondef, elemDef, err := splitEncodingDirectives(elem)
	if err != nil {
		return nil, err
	}
	configNondef, configDef, err := splitEncodingDirectives(config)
	if err != nil {
		return nil, err
	}

	merged := make([]EncodingDirective, len(elem), len(elem)+len(config))
	copy(merged, elem)

	for _, cd := range configNondef {
		found := false
		for _, ed := range elemNondef {
			if cd.Column == ed.Column {
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, cd)
		}
	}

	if elemDef != nil {
		return merged, nil
	}
	if configDef != nil {
		merged = append(merged, *configDef)
	}
	return merged, nil
}
