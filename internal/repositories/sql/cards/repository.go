package cards

import (
	"errors"

	"github.com/modelsmith/cardstore/pkg/infra"
	"gorm.io/gorm"
)

// Filter narrows List results. Zero-valued fields are ignored.
type Filter struct {
	Name       string
	Repository string
	Version    string
	CardType   string
	Limit      int
}

// Repository defines the interface for cards table operations
type Repository interface {
	Create(table *Table) error
	Update(table *Table) error
	Delete(uid string) error
	GetByUid(uid string) (*Table, error)
	List(filter Filter) ([]Table, error)
	Versions(name, repository string) ([]string, error)
	Repositories(cardType string) ([]string, error)
	Names(cardType, repository string) ([]string, error)
}

// Cards implements Repository backed by the registry database
type Cards struct {
	db     *gorm.DB
	dbName string
}

// NewRepository creates a new cards repository
func NewRepository(connection *infra.SQLConnection) (Repository, error) {
	if connection == nil {
		return nil, errors.New("connection cannot be nil")
	}

	session, err := connection.GetConn()
	if err != nil {
		return nil, err
	}
	meta, err := connection.GetMeta()
	if err != nil {
		return nil, err
	}
	dbName := meta["db_name"].(string)

	return &Cards{
		db:     session.(*gorm.DB),
		dbName: dbName,
	}, nil
}

// Create adds a new card record to the database.
func (c *Cards) Create(table *Table) error {
	result := c.db.Create(table)
	return result.Error
}

// Update updates a card's information in the database.
func (c *Cards) Update(table *Table) error {
	result := c.db.Model(table).Where("uid = ?", table.Uid).Updates(table)
	return result.Error
}

// Delete removes a card record by its uid.
func (c *Cards) Delete(uid string) error {
	result := c.db.Where("uid = ?", uid).Delete(&Table{})
	return result.Error
}

// GetByUid retrieves a card by its uid.
func (c *Cards) GetByUid(uid string) (*Table, error) {
	var card Table
	result := c.db.Where("uid = ?", uid).First(&card)
	return &card, result.Error
}

// List retrieves card records matching the filter, newest first.
func (c *Cards) List(filter Filter) ([]Table, error) {
	var cards []Table
	query := c.db.Order("created_at desc")
	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}
	if filter.Repository != "" {
		query = query.Where("repository = ?", filter.Repository)
	}
	if filter.Version != "" {
		query = query.Where("version = ?", filter.Version)
	}
	if filter.CardType != "" {
		query = query.Where("card_type = ?", filter.CardType)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	result := query.Find(&cards)
	return cards, result.Error
}

// Versions retrieves all stored versions for a card name within a repository.
func (c *Cards) Versions(name, repository string) ([]string, error) {
	var versions []string
	result := c.db.Model(&Table{}).
		Where("name = ? AND repository = ?", name, repository).
		Pluck("version", &versions)
	return versions, result.Error
}

// Repositories retrieves the distinct repositories holding cards of the given type.
func (c *Cards) Repositories(cardType string) ([]string, error) {
	var repositories []string
	query := c.db.Model(&Table{}).Distinct("repository")
	if cardType != "" {
		query = query.Where("card_type = ?", cardType)
	}
	result := query.Pluck("repository", &repositories)
	return repositories, result.Error
}

// Names retrieves the distinct card names within a repository.
func (c *Cards) Names(cardType, repository string) ([]string, error) {
	var names []string
	query := c.db.Model(&Table{}).Distinct("name")
	if cardType != "" {
		query = query.Where("card_type = ?", cardType)
	}
	if repository != "" {
		query = query.Where("repository = ?", repository)
	}
	result := query.Pluck("name", &names)
	return names, result.Error
}
