package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cleanlists/api/internal/model"
)

// TokenRepository persists encrypted provider tokens.
type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) FindByUserAndProvider(userID, provider string) (*model.MusicToken, error) {
	var token model.MusicToken
	err := r.db.Where("user_id = ? AND provider = ?", userID, provider).First(&token).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *TokenRepository) Create(token *model.MusicToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	return r.db.Create(token).Error
}

// Save writes the full row back; gorm maintains updated_at, which doubles
// as the audit timestamp for token mutations.
func (r *TokenRepository) Save(token *model.MusicToken) error {
	return r.db.Save(token).Error
}
