// Package store persists validator-node records and their collaborators in
// sqlite. All lookups are equality filters and all mutations are conditional
// updates keyed by address; no in-memory cache is authoritative across
// reconciliation passes.
package store

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/nodepilot/custodian/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a single-record lookup matches nothing.
var ErrNotFound = errors.New("store: record not found")

// Store wraps the database handle with typed collection accessors.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the sqlite database at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.AutoMigrate(&ValidatorNode{}, &DeletedNode{}, &User{}, &Invitation{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Store{db: db}, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- ValidatorNode collection

func (s *Store) InsertNode(n *ValidatorNode) error {
	return s.db.Create(n).Error
}

// NodesWhere returns nodes matching an equality filter over column names,
// e.g. {"staked": false} or {"owner": id}.
func (s *Store) NodesWhere(filter map[string]any) ([]ValidatorNode, error) {
	var out []ValidatorNode
	if err := s.db.Where(filter).Order("address").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) NodeByAddress(address string) (*ValidatorNode, error) {
	var n ValidatorNode
	if err := s.db.First(&n, "address = ?", address).Error; err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

// UpdateNode applies a field set to the node at address.
func (s *Store) UpdateNode(address string, fields map[string]any) error {
	res := s.db.Model(&ValidatorNode{}).Where("address = ?", address).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) RemoveNode(address string) error {
	return s.db.Delete(&ValidatorNode{}, "address = ?", address).Error
}

// --- DeletedNode collection

func (s *Store) InsertDeleted(d *DeletedNode) error {
	return s.db.Create(d).Error
}

func (s *Store) DeletedWhere(filter map[string]any) ([]DeletedNode, error) {
	var out []DeletedNode
	if err := s.db.Where(filter).Order("address").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeletedByAddress(address string) (*DeletedNode, error) {
	var d DeletedNode
	if err := s.db.First(&d, "address = ?", address).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (s *Store) UpdateDeleted(address string, fields map[string]any) error {
	res := s.db.Model(&DeletedNode{}).Where("address = ?", address).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- User collection

func (s *Store) InsertUser(u *User) error {
	return s.db.Create(u).Error
}

func (s *Store) UserByID(id string) (*User, error) {
	var u User
	if err := s.db.First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// --- Invitation collection

func (s *Store) InsertInvitation(i *Invitation) error {
	return s.db.Create(i).Error
}

// MintInvitation creates a fresh single-use invitation annotated with who it
// is for, returning the record so the caller can hand out the code.
func (s *Store) MintInvitation(memo string) (*Invitation, error) {
	inv := &Invitation{Code: utils.GenerateID(), Memo: memo, Valid: true}
	if err := s.db.Create(inv).Error; err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Store) InvitationByCode(code string) (*Invitation, error) {
	var i Invitation
	if err := s.db.First(&i, "code = ?", code).Error; err != nil {
		return nil, notFound(err)
	}
	return &i, nil
}

func (s *Store) UpdateInvitation(code string, fields map[string]any) error {
	res := s.db.Model(&Invitation{}).Where("code = ?", code).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
