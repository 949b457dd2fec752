package commands

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v2"
	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/gisquick/accounts-server/internal/infrastructure/postgres"
	json "github.com/goccy/go-json"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var (
	ErrPasswordsMismatch = errors.New("Passwords does not match")
)

// UserRecord is the dump/load format of user accounts. Password holds the
// stored hash.
type UserRecord struct {
	ID          string     `json:"id" yaml:"id"`
	Username    string     `json:"username" yaml:"username"`
	Email       string     `json:"email" yaml:"email"`
	Password    string     `json:"password" yaml:"password"`
	FirstName   string     `json:"first_name" yaml:"first_name"`
	LastName    string     `json:"last_name" yaml:"last_name"`
	IsStaff     bool       `json:"is_staff" yaml:"is_staff"`
	IsActive    bool       `json:"is_active" yaml:"is_active"`
	IsSuperuser bool       `json:"is_superuser" yaml:"is_superuser"`
	DateJoined  *time.Time `json:"date_joined" yaml:"date_joined"`
	LastLogin   *time.Time `json:"last_login" yaml:"last_login"`
}

func utcTime(t *time.Time) *time.Time {
	if t == nil {
		return t
	}
	d := t.UTC()
	return &d
}

func toRecord(u domain.User) UserRecord {
	return UserRecord{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Password:    string(u.Password),
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsStaff:     u.IsStaff,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		DateJoined:  utcTime(u.DateJoined),
		LastLogin:   utcTime(u.LastLogin),
	}
}

func fromRecord(r UserRecord) (domain.User, error) {
	u, err := domain.NewUser(r.Username, r.Email, r.FirstName, r.LastName, "")
	if err != nil {
		return domain.User{}, err
	}
	if r.ID != "" {
		u.ID = r.ID
	}
	if r.Password != "" {
		u.Password = []byte(r.Password)
	}
	u.IsStaff = r.IsStaff
	u.IsActive = r.IsActive
	u.IsSuperuser = r.IsSuperuser
	if r.DateJoined != nil {
		u.DateJoined = utcTime(r.DateJoined)
	}
	u.LastLogin = utcTime(r.LastLogin)
	return u, nil
}

// parseUsers decodes user records in JSON or YAML format by file extension.
func parseUsers(path string, content []byte) ([]UserRecord, error) {
	var users []UserRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &users); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(content, &users); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func runUserCommand(command func(repo *postgres.UsersRepository, args conf.Args) error) error {
	cfg := struct {
		Postgres PostgresConfig
		Args     conf.Args
	}{}
	if ok, err := parseConfig(&cfg); !ok {
		return err
	}
	dbConfig := cfg.Postgres.DBConfig()
	dbConfig.MaxIdleConns = 1
	dbConfig.MaxOpenConns = 1
	dbConn, err := postgres.OpenDB(dbConfig)
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer dbConn.Close()
	return command(postgres.NewUsersRepository(dbConn), cfg.Args)
}

func readLine(scanner *bufio.Scanner, label string) string {
	fmt.Printf("%s: ", label)
	scanner.Scan()
	return scanner.Text()
}

func createUser() (domain.User, error) {
	scanner := bufio.NewScanner(os.Stdin)
	username := readLine(scanner, "Username")
	email := readLine(scanner, "Email")
	firstName := readLine(scanner, "First Name")
	lastName := readLine(scanner, "Last Name")
	fmt.Printf("Password: ")
	password, _ := term.ReadPassword(int(syscall.Stdin))
	fmt.Printf("\nRepeat password: ")
	password2, _ := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if !bytes.Equal(password, password2) {
		return domain.User{}, ErrPasswordsMismatch
	}
	user, err := domain.NewUser(username, email, firstName, lastName, string(password))
	if err != nil {
		return domain.User{}, err
	}
	if msgs := domain.ValidatePassword(string(password), user); len(msgs) > 0 {
		// same as createsuperuser, weak password is only reported
		for _, msg := range msgs {
			fmt.Fprintln(os.Stderr, "warning:", msg)
		}
	}
	return user, nil
}

func addUser(repo *postgres.UsersRepository, args conf.Args) error {
	user, err := createUser()
	if err != nil {
		return fmt.Errorf("creating user account: %w", err)
	}
	return repo.Create(user)
}

func addSuperuser(repo *postgres.UsersRepository, args conf.Args) error {
	user, err := createUser()
	if err != nil {
		return fmt.Errorf("creating superuser account: %w", err)
	}
	user.IsStaff = true
	user.IsSuperuser = true
	return repo.Create(user)
}

func dumpUsers(repo *postgres.UsersRepository, args conf.Args) error {
	users, err := repo.List(domain.UsersQuery{})
	if err != nil {
		return fmt.Errorf("querying users: %w", err)
	}
	records := make([]UserRecord, len(users))
	for i, u := range users {
		records[i] = toRecord(u)
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

func loadUsers(repo *postgres.UsersRepository, args conf.Args) error {
	path := args.Num(0)
	if path == "" {
		return fmt.Errorf("missing file argument")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading users file: %w", err)
	}
	records, err := parseUsers(path, content)
	if err != nil {
		return fmt.Errorf("parsing input file: %w", err)
	}
	for _, r := range records {
		u, err := fromRecord(r)
		if err == nil {
			err = repo.Create(u)
		}
		if err != nil {
			fmt.Printf("failed to create account: %s (%s)\n", r.Username, err)
		}
	}
	return nil
}

func deleteUser(repo *postgres.UsersRepository, args conf.Args) error {
	if len(args) != 1 {
		return fmt.Errorf("Invalid number of arguments")
	}
	user, err := repo.GetByUsername(args.Num(0))
	if err != nil {
		return err
	}
	return repo.Delete(user.ID)
}

func AddUser() error {
	return runUserCommand(addUser)
}

func AddSuperuser() error {
	return runUserCommand(addSuperuser)
}

func DumpUsers() error {
	return runUserCommand(dumpUsers)
}

func LoadUsers() error {
	return runUserCommand(loadUsers)
}

func DeleteUser() error {
	return runUserCommand(deleteUser)
}
