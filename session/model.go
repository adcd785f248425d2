package session

// Session is the server-side record of one refresh token lineage.
type Session struct {
	SessionID   string
	UserID      string
	RefreshHash string
	CreatedAt   int64
	ExpiresAt   int64
}

const (
	fieldUserID    = "uid"
	fieldHash      = "hash"
	fieldCreatedAt = "created"
	fieldExpiresAt = "exp"
)

func (s *Session) fields() map[string]interface{} {
	return map[string]interface{}{
		fieldUserID:    s.UserID,
		fieldHash:      s.RefreshHash,
		fieldCreatedAt: s.CreatedAt,
		fieldExpiresAt: s.ExpiresAt,
	}
}
