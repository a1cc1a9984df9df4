package repository

import (
	"context"
	"fmt"
	"net/http"

	"notesync/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

type userDoc struct {
	Rev  string `json:"_rev,omitempty"`
	Type string `json:"type"`
	domain.User
}

type userRepository struct {
	client *kivik.Client
	dbName string
}

func NewUserRepository(client *kivik.Client, dbName string) UserRepository {
	return &userRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	db := r.client.DB(r.dbName)

	_, err := db.Put(ctx, docID(docTypeUser, user.ID), userDoc{Type: docTypeUser, User: *user})
	if kivik.HTTPStatus(err) == http.StatusConflict {
		return fmt.Errorf("user %s: %w", user.ID, domain.ErrAlreadyExists)
	}
	return couchError("create user", err)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *userRepository) findOne(ctx context.Context, field, value string) (*domain.User, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"type": docTypeUser,
			field:  value,
		},
		"limit": 1,
	}

	rows := db.Find(ctx, query)
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, couchError("query user by "+field, err)
		}
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}

	var doc userDoc
	if err := rows.ScanDoc(&doc); err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &doc.User, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	db := r.client.DB(r.dbName)

	var doc userDoc
	if err := db.Get(ctx, docID(docTypeUser, id)).ScanDoc(&doc); err != nil {
		return nil, couchError("find user", err)
	}
	return &doc.User, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	db := r.client.DB(r.dbName)
	id := docID(docTypeUser, user.ID)

	var existing userDoc
	if err := db.Get(ctx, id).ScanDoc(&existing); err != nil {
		return couchError("fetch user for update", err)
	}

	_, err := db.Put(ctx, id, userDoc{Rev: existing.Rev, Type: docTypeUser, User: *user})
	return couchError("update user", err)
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return exists(r.FindByEmail(ctx, email))
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return exists(r.FindByUsername(ctx, username))
}

func exists(_ *domain.User, err error) (bool, error) {
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
