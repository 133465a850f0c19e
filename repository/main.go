package repository

import (
	"gorm.io/gorm"
)

type Repository struct {
	ReviewJobRepo  *ReviewJobRepository
	ReviewBaseRepo *ReviewBaseRepository
	db             *gorm.DB
}

func InitRepository(db *gorm.DB) *Repository {
	return &Repository{
		ReviewJobRepo:  NewReviewJobRepository(db),
		ReviewBaseRepo: NewReviewBaseRepository(db),
		db:             db,
	}
}

func (r *Repository) WithTransaction(tx *gorm.DB) *Repository {
	return &Repository{
		ReviewJobRepo:  NewReviewJobRepository(tx),
		ReviewBaseRepo: NewReviewBaseRepository(tx),
		db:             tx,
	}
}

// Transaction runs fn against repositories bound to a single transaction.
func (r *Repository) Transaction(fn func(repo *Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTransaction(tx))
	})
}
