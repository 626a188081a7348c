package persons

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/mail"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("persons")

var (
	ErrInvalidCredentials = errors.New("persons: invalid credentials")
	ErrUnknownToken       = errors.New("persons: unknown or expired token")

	errMissingDatabase = errors.New("persons: database handle is required")
	noOpLogger         = zap.NewNop()
	usernamePattern    = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{2,19}$`)
)

const (
	opServiceNew     = "persons.service.new"
	opRegister       = "persons.register"
	opConfirm        = "persons.confirm"
	opAuthenticate   = "persons.authenticate"
	opStartReset     = "persons.start_password_reset"
	opResetPassword  = "persons.reset_password"
	opGet            = "persons.get"
	opList           = "persons.list"
	opSave           = "persons.save"
	opSetRoles       = "persons.set_roles"
	opSetStatus      = "persons.set_status"
	opSetAvatar      = "persons.set_avatar"
	opPurgeTokens    = "persons.purge_tokens"
	minPasswordRunes = 8
	defaultCacheTTL  = 10 * time.Minute
	defaultTokenTTL  = 72 * time.Hour
)

// Translator renders localized mail texts.
type Translator interface {
	Translate(locale, key string, args ...any) string
}

// ServiceConfig describes the dependencies of the person service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider store.IDProvider
	Logger     *zap.Logger
	Mailer     mail.Sender
	Translator Translator
	BaseURL    string
	TokenTTL   time.Duration
	CacheTTL   time.Duration
}

// Service manages accounts, their roles and the registration flows.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	persons    *store.Repository[Person, *Person]
	logger     *zap.Logger
	mailer     mail.Sender
	translator Translator
	baseURL    string
	tokenTTL   time.Duration
	cache      *cache.Cache
}

// NewService constructs the person service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, store.NewServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = store.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	mailer := cfg.Mailer
	if mailer == nil {
		mailer = mail.NewLogSender(logger)
	}
	translator := cfg.Translator
	if translator == nil {
		translator = keyTranslator{}
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	repository, err := store.NewRepository[Person](store.RepositoryConfig{
		Database:     cfg.Database,
		IDProvider:   ids,
		Clock:        clock,
		Preloads:     []string{"Roles"},
		DefaultOrder: "username ASC",
	})
	if err != nil {
		return nil, store.NewServiceError(opServiceNew, "repository_failed", err)
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		persons:    repository,
		logger:     logger,
		mailer:     mailer,
		translator: translator,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokenTTL:   tokenTTL,
		cache:      cache.New(cacheTTL, 2*cacheTTL),
	}, nil
}

// Registration is the data entered on the registration form.
type Registration struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Password  string
	Locale    string
}

// Register creates a disabled account and mails the confirmation link.
func (s *Service) Register(ctx context.Context, registration Registration) (*Person, error) {
	ctx, span := tracer.Start(ctx, opRegister)
	defer span.End()

	now := s.clock().UTC()
	person := &Person{
		Username:  strings.TrimSpace(registration.Username),
		FirstName: strings.TrimSpace(registration.FirstName),
		LastName:  strings.TrimSpace(registration.LastName),
		Email:     strings.TrimSpace(registration.Email),
		Locale:    normalizeLocale(registration.Locale),
		Status:    NewSecurityStatus(now),
	}
	person.Name = strings.TrimSpace(person.FirstName + " " + person.LastName)
	if err := validatePerson(person); err != nil {
		return nil, store.NewServiceError(opRegister, "invalid", err)
	}
	if len([]rune(registration.Password)) < minPasswordRunes {
		return nil, store.NewServiceError(opRegister, "invalid", store.Invalid("password", "must have at least %d characters", minPasswordRunes))
	}
	if err := person.SetPassword(registration.Password, now); err != nil {
		s.logError(opRegister, "hash_failed", err)
		return nil, store.NewServiceError(opRegister, "hash_failed", err)
	}

	token := ConfirmationToken{Token: newToken(), Created: now}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.persons.WithTx(tx).Save(ctx, person); err != nil {
			return err
		}
		token.PersonID = person.ID
		return store.Translate(tx.Omit("Person").Create(&token).Error)
	})
	if err != nil {
		s.logError(opRegister, store.Reason(err), err, zap.String("username", person.Username))
		return nil, store.NewServiceError(opRegister, store.Reason(err), err)
	}
	s.logger.Info("person registered", zap.String("person_id", person.ID), zap.String("username", person.Username))

	link := s.baseURL + "/confirm/" + token.Token
	s.sendMail(ctx, person, "mail.confirmation.subject", "mail.confirmation.body", person.FirstName, link)
	return person, nil
}

// Confirm enables the account belonging to token and grants the PERSON role.
func (s *Service) Confirm(ctx context.Context, tokenValue string) (*Person, error) {
	ctx, span := tracer.Start(ctx, opConfirm)
	defer span.End()

	var personID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token ConfirmationToken
		if err := tx.Where("token = ?", strings.TrimSpace(tokenValue)).Take(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownToken
			}
			return err
		}
		if s.expired(token.Created) {
			return ErrUnknownToken
		}
		personID = token.PersonID
		if err := tx.Model(&Person{}).Where("id = ?", personID).Update("account_enabled", true).Error; err != nil {
			return err
		}
		if err := tx.Where(Role{PersonID: personID, Name: RolePerson}).FirstOrCreate(&Role{PersonID: personID, Name: RolePerson}).Error; err != nil {
			return err
		}
		return tx.Delete(&ConfirmationToken{}, "token = ?", token.Token).Error
	})
	if err != nil {
		reason := tokenReason(err)
		s.logError(opConfirm, reason, err)
		return nil, store.NewServiceError(opConfirm, reason, err)
	}
	s.evict(personID)
	s.logger.Info("person confirmed", zap.String("person_id", personID))
	return s.Get(ctx, personID)
}

// Authenticate checks the credentials and the account status and records the login.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Person, error) {
	ctx, span := tracer.Start(ctx, opAuthenticate)
	defer span.End()

	person, err := s.persons.FindOne(ctx, "username = ?", strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.NewServiceError(opAuthenticate, "invalid_credentials", ErrInvalidCredentials)
		}
		s.logError(opAuthenticate, "query_failed", err)
		return nil, store.NewServiceError(opAuthenticate, "query_failed", err)
	}
	if !person.CheckPassword(password) {
		s.logger.Info("login rejected", zap.String("username", person.Username))
		return nil, store.NewServiceError(opAuthenticate, "invalid_credentials", ErrInvalidCredentials)
	}
	now := s.clock().UTC()
	if err := person.Status.CheckLogin(now); err != nil {
		s.logger.Info("login rejected by account status", zap.String("username", person.Username), zap.Error(err))
		return nil, store.NewServiceError(opAuthenticate, "account_status", err)
	}
	if err := s.db.WithContext(ctx).Model(&Person{}).Where("id = ?", person.ID).Update("last_login", now).Error; err != nil {
		s.logError(opAuthenticate, "last_login_failed", err, zap.String("person_id", person.ID))
	}
	person.Status.LastLogin = &now
	s.evict(person.ID)
	return person, nil
}

// StartPasswordReset mails a reset link when email belongs to an active person.
// Unknown addresses are not reported to the caller.
func (s *Service) StartPasswordReset(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, opStartReset)
	defer span.End()

	person, err := s.persons.FindOne(ctx, "email = ? AND deleted IS NULL", strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Info("password reset for unknown address requested")
			return nil
		}
		s.logError(opStartReset, "query_failed", err)
		return store.NewServiceError(opStartReset, "query_failed", err)
	}
	token := PasswordResetToken{Token: newToken(), PersonID: person.ID, Created: s.clock().UTC()}
	if err := s.db.WithContext(ctx).Omit("Person").Create(&token).Error; err != nil {
		s.logError(opStartReset, "token_failed", err, zap.String("person_id", person.ID))
		return store.NewServiceError(opStartReset, "token_failed", err)
	}
	link := s.baseURL + "/password-reset/" + token.Token
	s.sendMail(ctx, person, "mail.password_reset.subject", "mail.password_reset.body", person.FirstName, link)
	return nil
}

// ResetPassword replaces the password of the person owning token.
func (s *Service) ResetPassword(ctx context.Context, tokenValue, password string) error {
	ctx, span := tracer.Start(ctx, opResetPassword)
	defer span.End()

	if len([]rune(password)) < minPasswordRunes {
		return store.NewServiceError(opResetPassword, "invalid", store.Invalid("password", "must have at least %d characters", minPasswordRunes))
	}
	now := s.clock().UTC()
	var personID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token PasswordResetToken
		if err := tx.Where("token = ?", strings.TrimSpace(tokenValue)).Take(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownToken
			}
			return err
		}
		if s.expired(token.Created) {
			return ErrUnknownToken
		}
		personID = token.PersonID
		var holder Person
		if err := holder.SetPassword(password, now); err != nil {
			return err
		}
		if err := tx.Model(&Person{}).Where("id = ?", personID).Updates(map[string]any{
			"password":            holder.PasswordHash,
			"credentials_changed": now,
		}).Error; err != nil {
			return err
		}
		return tx.Delete(&PasswordResetToken{}, "person_id = ?", personID).Error
	})
	if err != nil {
		reason := tokenReason(err)
		s.logError(opResetPassword, reason, err)
		return store.NewServiceError(opResetPassword, reason, err)
	}
	s.evict(personID)
	s.logger.Info("password reset", zap.String("person_id", personID))
	return nil
}

// Get loads a person by id. Results are cached until the person is changed.
func (s *Service) Get(ctx context.Context, id string) (*Person, error) {
	if cached, ok := s.cache.Get(id); ok {
		if person, ok := cached.(*Person); ok {
			return person.clone(), nil
		}
	}
	person, err := s.persons.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logError(opGet, store.Reason(err), err, zap.String("person_id", id))
		}
		return nil, store.NewServiceError(opGet, store.Reason(err), err)
	}
	s.cache.SetDefault(id, person.clone())
	return person, nil
}

// FindByUsername loads a person by login name.
func (s *Service) FindByUsername(ctx context.Context, username string) (*Person, error) {
	person, err := s.persons.FindOne(ctx, "username = ?", strings.TrimSpace(username))
	if err != nil {
		return nil, store.NewServiceError(opGet, store.Reason(err), err)
	}
	return person, nil
}

// List returns one page of persons ordered by username.
func (s *Service) List(ctx context.Context, page store.Page) ([]Person, int64, error) {
	records, total, err := s.persons.FindAll(ctx, page)
	if err != nil {
		s.logError(opList, store.Reason(err), err)
		return nil, 0, store.NewServiceError(opList, store.Reason(err), err)
	}
	return records, total, nil
}

// ListWithRole returns all active persons holding role, e.g. the game masters
// offered in report forms.
func (s *Service) ListWithRole(ctx context.Context, role RoleName) ([]Person, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&Role{}).Where("role = ?", role).Pluck("person_id", &ids).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("role", string(role)))
		return nil, store.NewServiceError(opList, "query_failed", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	records, _, err := s.persons.FindWhere(ctx, store.Page{Order: "name ASC"}, "deleted IS NULL AND id IN ?", ids)
	if err != nil {
		s.logError(opList, store.Reason(err), err, zap.String("role", string(role)))
		return nil, store.NewServiceError(opList, store.Reason(err), err)
	}
	return records, nil
}

// Save stores profile changes. Credentials, roles and status have their own operations.
func (s *Service) Save(ctx context.Context, person *Person) error {
	ctx, span := tracer.Start(ctx, opSave)
	defer span.End()

	if person == nil {
		return store.NewServiceError(opSave, "invalid", store.ErrNilEntity)
	}
	person.Username = strings.TrimSpace(person.Username)
	person.Name = strings.TrimSpace(person.Name)
	person.Email = strings.TrimSpace(person.Email)
	person.Locale = normalizeLocale(person.Locale)
	if person.Name == "" {
		person.Name = strings.TrimSpace(person.FirstName + " " + person.LastName)
	}
	if err := validatePerson(person); err != nil {
		return store.NewServiceError(opSave, "invalid", err)
	}
	if person.IsNew() && person.Status.Expiry.IsZero() {
		person.Status = NewSecurityStatus(s.clock().UTC())
	}
	if err := s.persons.Save(ctx, person); err != nil {
		s.logError(opSave, store.Reason(err), err, zap.String("person_id", person.ID))
		return store.NewServiceError(opSave, store.Reason(err), err)
	}
	s.evict(person.ID)
	s.logger.Info("person saved", zap.String("person_id", person.ID))
	return nil
}

// SetPassword replaces the password of an existing person.
func (s *Service) SetPassword(ctx context.Context, id, password string) error {
	if len([]rune(password)) < minPasswordRunes {
		return store.NewServiceError(opSave, "invalid", store.Invalid("password", "must have at least %d characters", minPasswordRunes))
	}
	var holder Person
	now := s.clock().UTC()
	if err := holder.SetPassword(password, now); err != nil {
		return store.NewServiceError(opSave, "hash_failed", err)
	}
	return s.updateColumns(ctx, opSave, id, map[string]any{
		"password":            holder.PasswordHash,
		"credentials_changed": now,
	})
}

// SetRoles replaces the roles of a person.
func (s *Service) SetRoles(ctx context.Context, id string, roles []RoleName) error {
	ctx, span := tracer.Start(ctx, opSetRoles)
	defer span.End()

	seen := make(map[RoleName]bool, len(roles))
	rows := make([]Role, 0, len(roles))
	for _, role := range roles {
		if _, err := ParseRole(string(role)); err != nil {
			return store.NewServiceError(opSetRoles, "invalid", store.Invalid("roles", "%v", err))
		}
		if !seen[role] {
			seen[role] = true
			rows = append(rows, Role{PersonID: id, Name: role})
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Person{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: person %s", store.ErrNotFound, id)
		}
		if err := tx.Where("person_id = ?", id).Delete(&Role{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		s.logError(opSetRoles, store.Reason(err), err, zap.String("person_id", id))
		return store.NewServiceError(opSetRoles, store.Reason(err), err)
	}
	s.evict(id)
	s.logger.Info("person roles changed", zap.String("person_id", id), zap.Any("roles", roles))
	return nil
}

// MarkDeleted soft deletes the person; their names are masked from now on.
func (s *Service) MarkDeleted(ctx context.Context, id string) error {
	return s.updateColumns(ctx, opSetStatus, id, map[string]any{"deleted": s.clock().UTC()})
}

// Lock prevents further logins.
func (s *Service) Lock(ctx context.Context, id string) error {
	return s.updateColumns(ctx, opSetStatus, id, map[string]any{"account_locked": true})
}

// Unlock allows logins again.
func (s *Service) Unlock(ctx context.Context, id string) error {
	return s.updateColumns(ctx, opSetStatus, id, map[string]any{"account_locked": false})
}

// Enable activates the account without a confirmation mail.
func (s *Service) Enable(ctx context.Context, id string) error {
	return s.updateColumns(ctx, opSetStatus, id, map[string]any{"account_enabled": true})
}

// Disable deactivates the account.
func (s *Service) Disable(ctx context.Context, id string) error {
	return s.updateColumns(ctx, opSetStatus, id, map[string]any{"account_enabled": false})
}

// SetAvatar stores an uploaded avatar image and turns the gravatar off.
func (s *Service) SetAvatar(ctx context.Context, id string, image []byte) error {
	return s.updateColumns(ctx, opSetAvatar, id, map[string]any{"avatar": image, "gravatar": false})
}

func (s *Service) updateColumns(ctx context.Context, operation, id string, columns map[string]any) error {
	result := s.db.WithContext(ctx).Model(&Person{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		err := store.Translate(result.Error)
		s.logError(operation, store.Reason(err), err, zap.String("person_id", id))
		return store.NewServiceError(operation, store.Reason(err), err)
	}
	if result.RowsAffected == 0 {
		return store.NewServiceError(operation, "not_found", fmt.Errorf("%w: person %s", store.ErrNotFound, id))
	}
	s.evict(id)
	s.logger.Info("person updated", zap.String("operation", operation), zap.String("person_id", id))
	return nil
}

// PurgeExpiredTokens removes confirmation and reset tokens older than the token TTL.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	cutoff := s.clock().UTC().Add(-s.tokenTTL)
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		confirmations := tx.Where("created < ?", cutoff).Delete(&ConfirmationToken{})
		if confirmations.Error != nil {
			return confirmations.Error
		}
		resets := tx.Where("created < ?", cutoff).Delete(&PasswordResetToken{})
		if resets.Error != nil {
			return resets.Error
		}
		removed = confirmations.RowsAffected + resets.RowsAffected
		return nil
	})
	if err != nil {
		s.logError(opPurgeTokens, "delete_failed", err)
		return 0, store.NewServiceError(opPurgeTokens, "delete_failed", err)
	}
	return removed, nil
}

func (s *Service) expired(created time.Time) bool {
	return s.clock().UTC().After(created.Add(s.tokenTTL))
}

func (s *Service) evict(id string) {
	if id != "" {
		s.cache.Delete(id)
	}
}

func (s *Service) sendMail(ctx context.Context, person *Person, subjectKey, bodyKey string, args ...any) {
	message := mail.Message{
		ToName:    person.FullName(),
		ToAddress: person.Email,
		Subject:   s.translator.Translate(person.Locale, subjectKey),
		PlainText: s.translator.Translate(person.Locale, bodyKey, args...),
	}
	if err := s.mailer.Send(ctx, message); err != nil {
		s.logError("persons.mail", "send_failed", err, zap.String("person_id", person.ID))
	}
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("persons service error", attrs...)
}

func tokenReason(err error) string {
	if errors.Is(err, ErrUnknownToken) {
		return "unknown_token"
	}
	return store.Reason(store.Translate(err))
}

func validatePerson(person *Person) error {
	if !usernamePattern.MatchString(person.Username) {
		return store.Invalid("username", "must be 3 to 20 letters, digits, dots, dashes or underscores")
	}
	if person.FirstName == "" || len(person.FirstName) > 100 {
		return store.Invalid("firstName", "must have 1 to 100 characters")
	}
	if person.LastName == "" || len(person.LastName) > 100 {
		return store.Invalid("lastName", "must have 1 to 100 characters")
	}
	if person.Name == "" || len(person.Name) > 100 {
		return store.Invalid("name", "must have 1 to 100 characters")
	}
	if len(person.Email) > 100 {
		return store.Invalid("email", "must have at most 100 characters")
	}
	if _, err := netmail.ParseAddress(person.Email); err != nil {
		return store.Invalid("email", "is not a valid address")
	}
	return nil
}

func normalizeLocale(locale string) string {
	trimmed := strings.ToLower(strings.TrimSpace(locale))
	if trimmed == "" {
		return "en"
	}
	if base, _, found := strings.Cut(trimmed, "-"); found {
		return base
	}
	return trimmed
}

type keyTranslator struct{}

func (keyTranslator) Translate(_ string, key string, args ...any) string {
	if len(args) == 0 {
		return key
	}
	return key + " " + strings.TrimSpace(fmt.Sprintln(args...))
}
