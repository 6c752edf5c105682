package cqrs

// ---------- User queries ----------

// GetUserQuery fetches a single user by ID, subject to ownership check.
type GetUserQuery struct {
	UserID           string
	RequestingUserID string
}

// ResolveRecipientQuery looks a payee up by email.
type ResolveRecipientQuery struct {
	Email string
}

// ---------- Account queries ----------

// GetAccountQuery fetches a single account by id.
type GetAccountQuery struct {
	AccountID        string
	RequestingUserID string
}

// ListAccountsQuery fetches all accounts belonging to a user.
type ListAccountsQuery struct {
	UserID string
}

// GetBalanceQuery reads the authoritative balance, bypassing the read model.
type GetBalanceQuery struct {
	AccountID string
}

// ---------- Movement queries ----------

// GetMovementQuery fetches a single journal entry.
type GetMovementQuery struct {
	MovementID string
	AccountID  string
	UserID     string
}

// ListMovementsQuery fetches the journal of an account, most recent first.
type ListMovementsQuery struct {
	AccountID string
	UserID    string
}
