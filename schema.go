package resultset

import (
	"github.com/pkg/errors"
	"golang.org/x/text/cases"
)

// Schema is the immutable column layout of one result set.
type Schema struct {
	columns []ColumnDescriptor
	names   []string

	exact  map[string][]int
	folded map[string][]int

	sparse    []int
	columnSet int
}

// BuildSchema snapshots an ordered column sequence. The name index is built
// eagerly; with caseInsensitive set, a lookup that has no exact match falls
// back to a case-folded match.
func BuildSchema(columns []ColumnDescriptor, caseInsensitive bool) (*Schema, error) {
	s := &Schema{
		columns:   make([]ColumnDescriptor, len(columns)),
		names:     make([]string, len(columns)),
		exact:     make(map[string][]int, len(columns)),
		columnSet: -1,
	}
	copy(s.columns, columns)

	var fold cases.Caser
	if caseInsensitive {
		s.folded = make(map[string][]int, len(columns))
		fold = cases.Fold()
	}

	for i, col := range s.columns {
		if col.Ordinal != i {
			return nil, metadataErrorf(i, col.Name, "ordinal %d out of sequence", col.Ordinal)
		}

		if col.ColumnSet {
			if s.columnSet >= 0 {
				return nil, metadataErrorf(i, col.Name, "second column set")
			}
			s.columnSet = i
		}
		if col.Sparse {
			s.sparse = append(s.sparse, i)
		}

		s.names[i] = col.Name
		s.exact[col.Name] = append(s.exact[col.Name], i)
		if s.folded != nil {
			key := fold.String(col.Name)
			s.folded[key] = append(s.folded[key], i)
		}
	}

	return s, nil
}

func (s *Schema) Len() int {
	return len(s.columns)
}

func (s *Schema) Column(ordinal int) (ColumnDescriptor, error) {
	if ordinal < 0 || ordinal >= len(s.columns) {
		return ColumnDescriptor{}, errors.Wrapf(ErrOrdinalOutOfRange, "ordinal %d, %d columns", ordinal, len(s.columns))
	}
	return s.columns[ordinal], nil
}

// Columns returns a copy of the column descriptors in ordinal order.
func (s *Schema) Columns() []ColumnDescriptor {
	return append([]ColumnDescriptor{}, s.columns...)
}

func (s *Schema) Names() []string {
	return append([]string{}, s.names...)
}

func (s *Schema) ColumnByName(name string) (ColumnDescriptor, error) {
	ordinal, err := s.Ordinal(name)
	if err != nil {
		return ColumnDescriptor{}, err
	}
	return s.columns[ordinal], nil
}

// Ordinal resolves a column name: exact match first, then the case-folded
// fallback. More than one candidate at either step is ambiguous.
func (s *Schema) Ordinal(name string) (int, error) {
	candidates := s.exact[name]
	if len(candidates) == 0 && s.folded != nil {
		candidates = s.folded[cases.Fold().String(name)]
	}

	switch len(candidates) {
	case 0:
		return -1, errors.Wrapf(ErrColumnNotFound, "%q", name)
	case 1:
		return candidates[0], nil
	default:
		return -1, errors.Wrapf(ErrAmbiguousColumnName, "%q matches %d columns", name, len(candidates))
	}
}

// SparseColumnIndices returns the ordinals of the sparse columns in order.
func (s *Schema) SparseColumnIndices() []int {
	return append([]int{}, s.sparse...)
}

// ColumnSetIndex returns the ordinal of the column-set column, if any.
func (s *Schema) ColumnSetIndex() (int, bool) {
	return s.columnSet, s.columnSet >= 0
}
