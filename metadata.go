package resultset

// DecodeMetadata validates the raw column descriptors of one result set and
// turns them into ColumnDescriptors. A zero-length input is a valid, empty
// result set.
func DecodeMetadata(raw []RawColumn) ([]ColumnDescriptor, error) {
	columns := make([]ColumnDescriptor, 0, len(raw))
	columnSet := -1

	for i := range raw {
		col, err := decodeColumn(i, &raw[i])
		if err != nil {
			return nil, err
		}

		if col.ColumnSet {
			if columnSet >= 0 {
				return nil, metadataErrorf(i, col.Name, "second column set; column %d (%q) is already the column set", columnSet, columns[columnSet].Name)
			}
			columnSet = i
		}

		columns = append(columns, col)
	}

	return columns, nil
}

func decodeColumn(ordinal int, raw *RawColumn) (ColumnDescriptor, error) {
	info, ok := typeInfos[raw.Type]
	if !ok {
		return ColumnDescriptor{}, metadataErrorf(ordinal, raw.Name, "unknown type tag 0x%02X", uint8(raw.Type))
	}

	col := ColumnDescriptor{
		Ordinal:   ordinal,
		Name:      raw.Name,
		Type:      raw.Type,
		Nullable:  raw.Flags&FlagNullable != 0,
		Sparse:    raw.Flags&FlagSparse != 0,
		ColumnSet: raw.Flags&FlagColumnSet != 0,
		Identity:  raw.Flags&FlagIdentity != 0,
		Computed:  raw.Flags&FlagComputed != 0,
	}

	fail := func(format string, args ...interface{}) (ColumnDescriptor, error) {
		return ColumnDescriptor{}, metadataErrorf(ordinal, raw.Name, format, args...)
	}

	switch info.class {
	case fixedClass:
		if raw.Length != 0 && raw.Length != info.width {
			return fail("%s is %d bytes wide, descriptor says %d", info.name, info.width, raw.Length)
		}
		if col.Nullable {
			return fail("fixed-width %s cannot be nullable", info.name)
		}
		col.MaxLength = info.width
	case intNClass:
		if !oneOf(raw.Length, 1, 2, 4, 8) {
			return fail("invalid integer length %d", raw.Length)
		}
		col.MaxLength = raw.Length
	case bitNClass:
		if raw.Length != 1 {
			return fail("invalid bit length %d", raw.Length)
		}
		col.MaxLength = raw.Length
	case floatNClass:
		if !oneOf(raw.Length, 4, 8) {
			return fail("invalid float length %d", raw.Length)
		}
		col.MaxLength = raw.Length
	case decimalClass:
		if raw.Precision < 1 || raw.Precision > 38 {
			return fail("decimal precision %d outside 1..38", raw.Precision)
		}
		if raw.Scale > raw.Precision {
			return fail("decimal scale %d exceeds precision %d", raw.Scale, raw.Precision)
		}
		if want := decimalLength(raw.Precision); raw.Length != want {
			return fail("decimal(%d) is %d bytes, descriptor says %d", raw.Precision, want, raw.Length)
		}
		col.MaxLength = raw.Length
		col.Precision = raw.Precision
		col.Scale = raw.Scale
	case dateClass:
		if raw.Length != 0 && raw.Length != 3 {
			return fail("invalid date length %d", raw.Length)
		}
		col.MaxLength = 3
	case dateTimeNClass:
		if !oneOf(raw.Length, 4, 8) {
			return fail("invalid datetime length %d", raw.Length)
		}
		col.MaxLength = raw.Length
	case dateTime2Class:
		if raw.Scale > 7 {
			return fail("datetime2 scale %d exceeds 7", raw.Scale)
		}
		if want := 3 + timeLength(raw.Scale); raw.Length != 0 && raw.Length != want {
			return fail("datetime2(%d) is %d bytes, descriptor says %d", raw.Scale, want, raw.Length)
		}
		col.MaxLength = 3 + timeLength(raw.Scale)
		col.Scale = raw.Scale
	case charClass, ncharClass:
		if raw.Length == 0 || (raw.Length > maxDeclaredLength && raw.Length != MaxLength) {
			return fail("invalid %s length %d", info.name, raw.Length)
		}
		if info.class == ncharClass && raw.Length != MaxLength && raw.Length%2 != 0 {
			return fail("%s length %d is not a whole number of UTF-16 units", info.name, raw.Length)
		}
		if raw.Type == TypeBigChar || raw.Type == TypeNChar {
			if raw.Length == MaxLength {
				return fail("%s cannot be declared MAX", info.name)
			}
		}
		if len(raw.Collation) == 0 {
			return fail("%s column carries no collation", info.name)
		}
		collation, err := ParseCollation(raw.Collation)
		if err != nil {
			return fail("%v", err)
		}
		col.MaxLength = raw.Length
		col.Collation = collation
	case binaryClass:
		if raw.Length == 0 || (raw.Length > maxDeclaredLength && raw.Length != MaxLength) {
			return fail("invalid %s length %d", info.name, raw.Length)
		}
		if raw.Type == TypeBigBinary && raw.Length == MaxLength {
			return fail("BINARY cannot be declared MAX")
		}
		col.MaxLength = raw.Length
	case xmlClass:
		if raw.Length != 0 && raw.Length != MaxLength {
			return fail("invalid xml length %d", raw.Length)
		}
		col.MaxLength = MaxLength
	}

	if col.ColumnSet {
		if raw.Type != TypeXML {
			return fail("column set must be XML, got %s", info.name)
		}
		if col.Sparse {
			return fail("column set cannot itself be sparse")
		}
		if !col.Nullable {
			return fail("column set must be nullable")
		}
	}

	if col.Sparse && !col.Nullable {
		return fail("sparse column must be nullable")
	}

	if raw.Default != nil {
		if !col.Sparse {
			return fail("default value declared on a non-sparse column")
		}
		def, err := DecodeValue(&col, Cell(raw.Default))
		if err != nil {
			return fail("invalid default: %v", err)
		}
		col.Default = &def
	}

	return col, nil
}

func oneOf(n uint32, options ...uint32) bool {
	for _, o := range options {
		if n == o {
			return true
		}
	}
	return false
}

// decimalLength is the descriptor length (sign byte plus magnitude) of a
// decimal with the given precision.
func decimalLength(precision uint8) uint32 {
	switch {
	case precision <= 9:
		return 5
	case precision <= 19:
		return 9
	case precision <= 28:
		return 13
	default:
		return 17
	}
}

// timeLength is the byte width of the time part of a datetime2.
func timeLength(scale uint8) uint32 {
	switch {
	case scale <= 2:
		return 3
	case scale <= 4:
		return 4
	default:
		return 5
	}
}
