package repository

import (
	"fmt"

	"github.com/okian/judgeboard/internal/domain/model"
)

// unpackProfile dereferences the supported profile types so callers only
// deal with values.
func unpackProfile(p model.Profile) (model.Profile, error) {
	switch v := p.(type) {
	case model.LeetCodeStats, model.CodeforcesStats:
		return v, nil
	case *model.LeetCodeStats:
		if v != nil {
			return *v, nil
		}
	case *model.CodeforcesStats:
		if v != nil {
			return *v, nil
		}
	}
	return nil, fmt.Errorf("%w: unsupported profile %T", ErrInvalidInput, p)
}
