package catalog

import "unicode/utf8"

// MaxIdentifierLength is the byte limit on a relation name, one less
// than the 64-byte name buffer.
const MaxIdentifierLength = 63

// MakeObjectName builds "name1_name2_label" under the identifier byte
// limit. The label is kept whole; name1 and name2 are truncated,
// longer one first, until the joined name fits. Truncation never splits
// a multibyte character.
func MakeObjectName(name1, name2, label string) string {
	label = ClipIdentifier(label)

	name1chars := len(name1)
	name2chars := len(name2)
	overhead := 0
	if name2 != "" {
		overhead++
	}
	if label != "" {
		overhead += len(label) + 1
	}
	avail := MaxIdentifierLength - overhead
	if avail < 0 {
		avail = 0
	}
	for name1chars+name2chars > avail {
		if name1chars == 0 && name2chars == 0 {
			break
		}
		if name1chars > name2chars {
			name1chars--
		} else {
			name2chars--
		}
	}

	name := clipBytes(name1, name1chars)
	if name2 != "" {
		name += "_" + clipBytes(name2, name2chars)
	}
	if label != "" {
		name += "_" + label
	}
	return name
}

// ClipIdentifier truncates a name to the identifier byte limit without
// splitting a multibyte character.
func ClipIdentifier(s string) string {
	return clipBytes(s, MaxIdentifierLength)
}

func clipBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
