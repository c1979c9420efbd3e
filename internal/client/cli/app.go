// Package cli implements the fortress command-line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/fortress/internal/client/config"
	"github.com/dmitrijs2005/fortress/internal/client/remote"
	"github.com/dmitrijs2005/fortress/internal/filex"
	"github.com/dmitrijs2005/fortress/internal/fortress"
)

const usage = `usage: fortress [-f file] [-t seconds] <command> [arguments]

commands:
  init <username>             create a new database
  list                        show directories and entries
  mkdir <name>                create a directory under the root
  rename <dir-id> <name>      rename a directory
  mv <id> <parent-id>         move an object into a directory
  edit [entry-id] key=value...  create or edit an entry ("key=-" removes a field)
  show <entry-id>             print one entry
  set-sync-url <url>          store the sync server URL
  sync                        synchronize with the sync server
  sync-s3 <bucket> [prefix]   synchronize with an S3 bucket
  passwd <username>           change username and passphrase
  gen <length> [others]       generate a random password
`

// App dispatches CLI subcommands against a database file.
type App struct {
	cfg *config.Config
}

func NewApp(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Run executes one subcommand. Args carry the subcommand and its
// arguments, with global flags already stripped.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("no command given")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init":
		return a.cmdInit(rest)
	case "list":
		return a.withDatabase(func(db *fortress.Database) (bool, error) { return false, a.cmdList(db) })
	case "mkdir":
		return a.withDatabase(func(db *fortress.Database) (bool, error) { return true, a.cmdMkdir(db, rest) })
	case "rename":
		return a.withDatabase(func(db *fortress.Database) (bool, error) { return true, a.cmdRename(db, rest) })
	case "mv":
		return a.withDatabase(func(db *fortress.Database) (bool, error) { return true, a.cmdMove(db, rest) })
	case "edit":
		return a.withDatabase(func(db *fortress.Database) (bool, error) { return true, a.cmdEdit(db, rest) })
	case "show":
		return a.withDatabase(func(db *fortress.Database) (bool, error) { return false, a.cmdShow(db, rest) })
	case "set-sync-url":
		return a.withDatabase(func(db *fortress.Database) (bool, error) { return true, a.cmdSetSyncURL(db, rest) })
	case "sync":
		return a.withDatabase(func(db *fortress.Database) (bool, error) { return a.cmdSync(ctx, db) })
	case "sync-s3":
		return a.withDatabase(func(db *fortress.Database) (bool, error) { return a.cmdSyncS3(ctx, db, rest) })
	case "passwd":
		return a.withDatabase(func(db *fortress.Database) (bool, error) { return true, a.cmdPasswd(db, rest) })
	case "gen":
		return a.cmdGenerate(rest)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// withDatabase opens the database, runs fn, and saves if fn reports a
// mutation.
func (a *App) withDatabase(fn func(*fortress.Database) (bool, error)) error {
	passphrase, err := readPassphrase("Passphrase: ")
	if err != nil {
		return err
	}

	db, err := fortress.LoadFromPath(a.cfg.DatabasePath, passphrase)
	if err != nil {
		return err
	}

	save, err := fn(db)
	if save {
		if saveErr := db.SaveToPath(a.cfg.DatabasePath); saveErr != nil && err == nil {
			err = saveErr
		}
	}
	return err
}

func (a *App) cmdInit(args []string) error {
	if len(args) != 1 {
		return errors.New("init needs a username")
	}
	if _, err := os.Stat(a.cfg.DatabasePath); err == nil {
		return fmt.Errorf("%s already exists", a.cfg.DatabasePath)
	}

	passphrase, err := readNewPassphrase()
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Deriving keys, this takes a while...")
	db, err := fortress.NewDatabase(args[0], passphrase)
	if err != nil {
		return err
	}

	if err := filex.EnsureDir(filepath.Dir(a.cfg.DatabasePath)); err != nil {
		return err
	}
	return db.SaveToPath(a.cfg.DatabasePath)
}

func (a *App) cmdList(db *fortress.Database) error {
	for _, dir := range db.ListDirectories() {
		name, _ := dir.Name()
		if dir.Id == fortress.RootID {
			name = "/"
		}
		fmt.Printf("%s  %s\n", dir.Id, name)
		for _, childId := range dir.ChildIds() {
			entry, err := db.GetEntry(childId)
			if err != nil {
				continue
			}
			title, _ := entry.Get(fortress.KeyTitle)
			fmt.Printf("    %s  %s\n", entry.Id, title)
		}
	}
	return nil
}

func (a *App) cmdMkdir(db *fortress.Database, args []string) error {
	if len(args) != 1 {
		return errors.New("mkdir needs a name")
	}
	id, err := db.NewDirectory(args[0])
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func (a *App) cmdRename(db *fortress.Database, args []string) error {
	if len(args) != 2 {
		return errors.New("rename needs a directory id and a name")
	}
	id, err := fortress.ParseID(args[0])
	if err != nil {
		return err
	}
	return db.RenameDirectory(id, args[1])
}

func (a *App) cmdMove(db *fortress.Database, args []string) error {
	if len(args) != 2 {
		return errors.New("mv needs an object id and a directory id")
	}
	id, err := fortress.ParseID(args[0])
	if err != nil {
		return err
	}
	parent, err := fortress.ParseID(args[1])
	if err != nil {
		return err
	}
	return db.MoveObject(id, parent)
}

// parseFields turns key=value arguments into an edit map. A value of "-"
// removes the field.
func parseFields(args []string) (map[string]*string, error) {
	data := make(map[string]*string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("field %q is not key=value", arg)
		}
		if value == "-" {
			data[key] = nil
		} else {
			v := value
			data[key] = &v
		}
	}
	return data, nil
}

func (a *App) cmdEdit(db *fortress.Database, args []string) error {
	var entryId *fortress.ID
	if len(args) > 0 && !strings.Contains(args[0], "=") {
		id, err := fortress.ParseID(args[0])
		if err != nil {
			return err
		}
		entryId = &id
		args = args[1:]
	}
	if len(args) == 0 {
		return errors.New("edit needs at least one key=value field")
	}

	data, err := parseFields(args)
	if err != nil {
		return err
	}

	id, err := db.EditEntry(entryId, data, fortress.RootID)
	if err != nil {
		return err
	}
	if entryId == nil {
		fmt.Println(id)
	}
	return nil
}

func (a *App) cmdShow(db *fortress.Database, args []string) error {
	if len(args) != 1 {
		return errors.New("show needs an entry id")
	}
	id, err := fortress.ParseID(args[0])
	if err != nil {
		return err
	}
	entry, err := db.GetEntry(id)
	if err != nil {
		return err
	}
	state := entry.State()
	for _, key := range []string{fortress.KeyTitle, fortress.KeyUsername, fortress.KeyPassword, fortress.KeyURL, fortress.KeyNotes} {
		if v, ok := state[key]; ok {
			fmt.Printf("%s: %s\n", key, v)
			delete(state, key)
		}
	}
	for key, v := range state {
		fmt.Printf("%s: %s\n", key, v)
	}
	return nil
}

func (a *App) cmdSetSyncURL(db *fortress.Database, args []string) error {
	if len(args) != 1 {
		return errors.New("set-sync-url needs a url")
	}
	return db.SetSyncURL(args[0])
}

func (a *App) cmdSync(ctx context.Context, db *fortress.Database) (bool, error) {
	if db.SyncURL() == "" {
		return false, errors.New("no sync url configured; run set-sync-url first")
	}
	loginId, loginKey := db.LoginCredentials()
	store := remote.NewHTTPStore(db.SyncURL(), loginId, loginKey, a.cfg.RequestTimeout)
	return a.runSync(ctx, db, store)
}

func (a *App) cmdSyncS3(ctx context.Context, db *fortress.Database, args []string) (bool, error) {
	if len(args) < 1 || len(args) > 2 {
		return false, errors.New("sync-s3 needs a bucket and an optional prefix")
	}
	loginId, _ := db.LoginCredentials()
	prefix := loginId.String() + "/"
	if len(args) == 2 {
		prefix = args[1]
	}

	store, err := remote.NewS3Store(ctx, args[0], prefix)
	if err != nil {
		return false, err
	}
	return a.runSync(ctx, db, store)
}

func (a *App) runSync(ctx context.Context, db *fortress.Database, store fortress.ObjectStore) (bool, error) {
	changed, err := db.Sync(ctx, store)
	if err != nil {
		return changed, err
	}
	if changed {
		fmt.Println("synchronized, local changes merged")
	} else {
		fmt.Println("synchronized, already up to date")
	}
	return changed, nil
}

func (a *App) cmdPasswd(db *fortress.Database, args []string) error {
	if len(args) != 1 {
		return errors.New("passwd needs a username")
	}
	passphrase, err := readNewPassphrase()
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Deriving keys, this takes a while...")
	return db.ChangePassphrase(args[0], passphrase)
}

func (a *App) cmdGenerate(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("gen needs a length and an optional extra alphabet")
	}
	length, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad length %q", args[0])
	}
	others := ""
	if len(args) == 2 {
		others = args[1]
	}

	s, err := fortress.RandomString(length, true, true, true, others)
	if err != nil {
		return err
	}
	fmt.Println(s)
	return nil
}
