package cache

import (
	"fmt"

	"clearclaim/internal/claims"
	"clearclaim/pkg/domain"
)

// Key construction. Every distinct query parameter that affects the result set
// is part of the key, and the requesting principal's id leads it so two
// principals never share an entry. Invalidation is deliberately coarse: one
// prefix per principal, wiped on any of that principal's mutations.

const listKeyspace = "claims:list:"

// PrincipalPrefix is the invalidation prefix covering every cached list for
// one principal.
func PrincipalPrefix(userID domain.UserID) string {
	return listKeyspace + userID.String() + ":"
}

// ListKey builds the deterministic cache key for one list query. Logically
// identical queries from the same principal always map to the same key.
func ListKey(userID domain.UserID, filter claims.ListFilter, page claims.Page) string {
	page = page.Normalize()
	return fmt.Sprintf("%spatient=%s&status=%s&search=%s&page=%d&size=%d",
		PrincipalPrefix(userID),
		filter.PatientID.String(), filter.Status, filter.Search,
		page.Number, page.Size,
	)
}
