package httpx

import (
	"net/http"
	"strconv"

	apperrors "github.com/target/mmk-autoapply/internal/errors"
)

// pageParams reads ?limit= and ?offset=. Missing values take defaults; a
// limit above maxLimit is clamped; non-numeric or negative input is rejected.
func pageParams(r *http.Request, defLimit, maxLimit int) (limit, offset int, err error) {
	q := r.URL.Query()
	limit, offset = defLimit, 0

	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 {
			return 0, 0, apperrors.ValidationField("limit", "limit must be a positive integer")
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			return 0, 0, apperrors.ValidationField("offset", "offset must be a non-negative integer")
		}
	}
	return min(limit, maxLimit), offset, nil
}
