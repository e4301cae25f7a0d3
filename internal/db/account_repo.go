package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"neuraslide/internal/types"
)

// InstagramAccountRepo resolves the Instagram account id carried in webhook
// entries to the internal account and its owning tenant user.
type InstagramAccountRepo struct {
	db DBTX
}

// NewInstagramAccountRepo creates a repo backed by the given connection
// (pool or transaction).
func NewInstagramAccountRepo(db DBTX) *InstagramAccountRepo {
	return &InstagramAccountRepo{db: db}
}

// GetByExternalID looks up the account by the Instagram-assigned external id.
// Returns ErrCodeNotFoundAccount when no row matches, and ErrCodeNotFoundUser
// when the account row exists but has no associated tenant user.
func (r *InstagramAccountRepo) GetByExternalID(ctx context.Context, externalID string) (*types.InstagramAccount, error) {
	var acct types.InstagramAccount
	var userID *string
	var accessToken string
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, external_id, username, access_token, is_active
		 FROM instagram_accounts
		 WHERE external_id = $1`,
		externalID,
	).Scan(&acct.ID, &userID, &acct.ExternalID, &acct.Username, &accessToken, &acct.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundAccount,
			fmt.Sprintf("no Instagram account matches external id %s", externalID),
			nil,
		)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to look up Instagram account", err)
	}

	if userID == nil || *userID == "" {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundUser,
			fmt.Sprintf("Instagram account %s has no associated user", externalID),
			nil,
		)
	}
	acct.UserID = *userID
	acct.AccessToken = types.SecretString(accessToken)

	return &acct, nil
}
