package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"velora_back_end/internal/database"
	"velora_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("utilisateur introuvable")
	ErrEmailTaken   = errors.New("email déjà utilisé")
)

// ScyllaUsers : comptes utilisateurs sur le keyspace users.
// Deux tables : users (par user_id) et users_by_email (index de connexion).
type ScyllaUsers struct{}

func NewScyllaUsers() *ScyllaUsers {
	return &ScyllaUsers{}
}

// Create enregistre un nouvel utilisateur. L'unicité de l'email est garantie
// par INSERT IF NOT EXISTS sur users_by_email.
func (s *ScyllaUsers) Create(ctx context.Context, user *models.User) error {
	session, err := database.GetUsersSession()
	if err != nil {
		return fmt.Errorf("connexion keyspace users: %w", err)
	}

	uid, err := uuid.Parse(user.ID)
	if err != nil {
		return fmt.Errorf("ID utilisateur invalide %q: %w", user.ID, err)
	}

	previous := make(map[string]interface{})
	applied, err := session.Query(`INSERT INTO users_by_email (email, user_id, password, name, role)
		VALUES (?, ?, ?, ?, ?) IF NOT EXISTS`,
		user.Email, gocql.UUID(uid), user.Password, user.Name, user.Role).
		WithContext(ctx).MapScanCAS(previous)
	if err != nil {
		return fmt.Errorf("insertion users_by_email: %w", err)
	}
	if !applied {
		return ErrEmailTaken
	}

	if err := session.Query(`INSERT INTO users (user_id, email, password, name, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		gocql.UUID(uid), user.Email, user.Password, user.Name, user.Role, time.Now()).
		WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("insertion users: %w", err)
	}

	return nil
}

// GetByEmail récupère un utilisateur pour la connexion.
func (s *ScyllaUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	session, err := database.GetUsersSession()
	if err != nil {
		return nil, fmt.Errorf("connexion keyspace users: %w", err)
	}

	var userID gocql.UUID
	user := models.User{Email: email}
	err = session.Query(`SELECT user_id, password, name, role FROM users_by_email WHERE email = ?`, email).
		WithContext(ctx).Scan(&userID, &user.Password, &user.Name, &user.Role)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture users_by_email: %w", err)
	}

	user.ID = userID.String()
	return &user, nil
}

// GetByID récupère le profil d'un utilisateur.
func (s *ScyllaUsers) GetByID(ctx context.Context, userID string) (*models.User, error) {
	session, err := database.GetUsersSession()
	if err != nil {
		return nil, fmt.Errorf("connexion keyspace users: %w", err)
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("ID utilisateur invalide %q: %w", userID, err)
	}

	user := models.User{ID: userID}
	err = session.Query(`SELECT email, name, role FROM users WHERE user_id = ?`, gocql.UUID(uid)).
		WithContext(ctx).Scan(&user.Email, &user.Name, &user.Role)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture users: %w", err)
	}
	return &user, nil
}

// GetEmail renvoie l'adresse e-mail d'un utilisateur (notifications).
func (s *ScyllaUsers) GetEmail(ctx context.Context, userID string) (string, error) {
	session, err := database.GetUsersSession()
	if err != nil {
		return "", fmt.Errorf("connexion keyspace users: %w", err)
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("ID utilisateur invalide %q: %w", userID, err)
	}

	var email string
	err = session.Query(`SELECT email FROM users WHERE user_id = ?`, gocql.UUID(uid)).
		WithContext(ctx).Scan(&email)
	if errors.Is(err, gocql.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lecture users: %w", err)
	}
	return email, nil
}
