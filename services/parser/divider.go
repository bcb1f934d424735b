package parser

// QueryDivider is a bufio.SplitFunc cutting a stream into statements at ';'
// or a newline outside of quotes. Terminators are dropped, so statements may
// be blank.
func QueryDivider(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	var quote byte
	escaped := false
	for i, b := range data {
		switch {
		case escaped:
			escaped = false
		case quote == '"' && b == '\\':
			escaped = true
		case quote != 0:
			if b == quote {
				quote = 0
			}
		case b == '"' || b == '`':
			quote = b
		case b == ';' || b == '\n':
			return i + 1, data[:i], nil
		}
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
