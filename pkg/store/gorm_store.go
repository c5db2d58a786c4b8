package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"booklend/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &BookModel{}, &LoanModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser inserts a new user or updates an existing one.
func (s *GormStore) SaveUser(u domain.User) (domain.User, error) {
	model := userToModel(u)
	var err error
	if model.ID == 0 {
		if model.CreatedAt.IsZero() {
			model.CreatedAt = time.Now().UTC()
		}
		err = s.db.Create(&model).Error
	} else {
		err = s.db.Save(&model).Error
	}
	if err != nil {
		return domain.User{}, err
	}
	return userFromModel(model), nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id int64) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUsers returns all users ordered by creation.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// DeleteUser removes a user row. Loan guards are enforced above the store.
func (s *GormStore) DeleteUser(id int64) error {
	return s.db.Delete(&UserModel{}, "id = ?", id).Error
}

// SaveBook inserts or updates a book.
func (s *GormStore) SaveBook(b domain.Book) (domain.Book, error) {
	model := bookToModel(b)
	now := time.Now().UTC()
	model.UpdatedAt = now
	var err error
	if model.ID == 0 {
		if model.CreatedAt.IsZero() {
			model.CreatedAt = now
		}
		err = s.db.Create(&model).Error
	} else {
		err = s.db.Save(&model).Error
	}
	if err != nil {
		return domain.Book{}, err
	}
	return bookFromModel(model), nil
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id int64) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns all books ordered by id.
func (s *GormStore) ListBooks() ([]domain.Book, error) {
	return s.listBooks()
}

// ListBooksByOwner returns books filtered by owner.
func (s *GormStore) ListBooksByOwner(ownerID int64) ([]domain.Book, error) {
	return s.listBooks("owner_id = ?", ownerID)
}

func (s *GormStore) listBooks(conds ...any) ([]domain.Book, error) {
	var models []BookModel
	tx := s.db.Order("id ASC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// SearchBooks applies the query filters in SQL.
func (s *GormStore) SearchBooks(q BookQuery) ([]domain.Book, error) {
	tx := s.db.Order("id ASC")
	if text := strings.TrimSpace(q.Text); text != "" {
		like := "%" + strings.ToLower(text) + "%"
		tx = tx.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(isbn) LIKE ?", like, like, like)
	}
	if q.Author != "" {
		tx = tx.Where("LOWER(author) = ?", strings.ToLower(q.Author))
	}
	if q.Publisher != "" {
		tx = tx.Where("LOWER(publisher) = ?", strings.ToLower(q.Publisher))
	}
	if q.Year != 0 {
		tx = tx.Where("publish_year = ?", q.Year)
	}
	var models []BookModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// DeleteBookCascade removes a book and its loan history atomically.
func (s *GormStore) DeleteBookCascade(id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&LoanModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&BookModel{}, "id = ?", id).Error
	})
}

// LendBook checks availability and inserts the loan in one transaction. The
// book row is locked FOR UPDATE so concurrent lends for the same book
// serialize; exactly one wins, the rest see ErrBookOnLoan.
func (s *GormStore) LendBook(bookID, borrowerID int64, loanDate time.Time, returnDate *time.Time, now time.Time) (domain.Loan, error) {
	var model LoanModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var book BookModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&book, "id = ?", bookID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrBookNotFound
			}
			return err
		}
		var active int64
		if err := tx.Model(&LoanModel{}).
			Where("book_id = ? AND (return_date IS NULL OR return_date > ?)", bookID, now).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return domain.ErrBookOnLoan
		}
		model = LoanModel{
			BookID:     bookID,
			UserID:     borrowerID,
			LoanDate:   loanDate.UTC(),
			ReturnDate: returnDate,
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.Loan{}, err
	}
	return loanFromModel(model), nil
}

// GetLoan retrieves a loan.
func (s *GormStore) GetLoan(id int64) (domain.Loan, bool, error) {
	var model LoanModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Loan{}, false, nil
		}
		return domain.Loan{}, false, err
	}
	return loanFromModel(model), true, nil
}

// ListLoans returns every loan ordered by id.
func (s *GormStore) ListLoans() ([]domain.Loan, error) {
	return s.listLoans()
}

// ListLoansByBook returns the full loan history of a book.
func (s *GormStore) ListLoansByBook(bookID int64) ([]domain.Loan, error) {
	return s.listLoans("book_id = ?", bookID)
}

// ListLoansByUser returns every loan a user appears on as borrower.
func (s *GormStore) ListLoansByUser(userID int64) ([]domain.Loan, error) {
	return s.listLoans("user_id = ?", userID)
}

func (s *GormStore) listLoans(conds ...any) ([]domain.Loan, error) {
	var models []LoanModel
	tx := s.db.Order("id ASC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Loan, 0, len(models))
	for _, m := range models {
		res = append(res, loanFromModel(m))
	}
	return res, nil
}

// SetLoanReturn stamps the return date. Overwriting an existing return date is
// allowed; the ledger decides whether to warn.
func (s *GormStore) SetLoanReturn(id int64, returnDate time.Time) (domain.Loan, error) {
	returnDate = returnDate.UTC()
	res := s.db.Model(&LoanModel{}).Where("id = ?", id).Update("return_date", returnDate)
	if res.Error != nil {
		return domain.Loan{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Loan{}, domain.ErrLoanNotFound
	}
	loan, _, err := s.GetLoan(id)
	return loan, err
}

// DeleteLoan removes a loan row.
func (s *GormStore) DeleteLoan(id int64) error {
	return s.db.Delete(&LoanModel{}, "id = ?", id).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Active:       u.Active,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	role := domain.UserRole(m.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         role,
		Active:       m.Active,
		LastLogin:    m.LastLogin,
		CreatedAt:    m.CreatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	var ownerID *int64
	if b.OwnerID != 0 {
		value := b.OwnerID
		ownerID = &value
	}
	return BookModel{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Description: b.Description,
		ISBN:        domain.NormalizeISBN(b.ISBN),
		Publisher:   b.Publisher,
		PublishYear: b.PublishYear,
		OwnerID:     ownerID,
		CoverKey:    b.CoverKey,
		Enrichment:  datatypes.JSON(b.Enrichment),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	var ownerID int64
	if m.OwnerID != nil {
		ownerID = *m.OwnerID
	}
	return domain.Book{
		ID:          m.ID,
		Title:       m.Title,
		Author:      m.Author,
		Description: m.Description,
		ISBN:        m.ISBN,
		Publisher:   m.Publisher,
		PublishYear: m.PublishYear,
		OwnerID:     ownerID,
		CoverKey:    m.CoverKey,
		HasCover:    m.CoverKey != "",
		Enrichment:  []byte(m.Enrichment),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func loanFromModel(m LoanModel) domain.Loan {
	return domain.Loan{
		ID:         m.ID,
		BookID:     m.BookID,
		UserID:     m.UserID,
		LoanDate:   m.LoanDate,
		ReturnDate: m.ReturnDate,
	}
}
