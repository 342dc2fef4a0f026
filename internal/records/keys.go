package records

const (
	// KeyPrefixRecord is the prefix for record keys
	KeyPrefixRecord = "pf:record:"
	// KeyPrefixShare is the prefix for share-token index keys
	KeyPrefixShare = "pf:share:"
	// KeyAllRecords is the key for the set of all record codes
	KeyAllRecords = "pf:records:all"
)

// RecordKey returns the Redis key for a record by code
func RecordKey(code string) string {
	return KeyPrefixRecord + code
}

// ShareKey returns the Redis key for a share-token index entry
func ShareKey(token string) string {
	return KeyPrefixShare + token
}
