package fortress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/dmitrijs2005/fortress/internal/filex"
	"github.com/dmitrijs2005/fortress/internal/fortresscrypto"
)

// Database is the in-memory, unlocked password database: a flat map of
// objects plus the key material needed to save it and to sync it.
// A Database is not safe for concurrent use; callers serialize mutations.
type Database struct {
	objects *ObjectMap

	username string
	syncURL  string

	// networkSuite is expensive to derive and is cached in the serialized
	// database. It changes only with the username or passphrase.
	networkSuite *fortresscrypto.NetworkKeySuite
	loginId      fortresscrypto.LoginId

	fileSuite *fortresscrypto.FileKeySuite

	// lastTime makes the timestamp source monotonically non-decreasing
	// within one process even if the wall clock steps backwards.
	lastTime int64
}

// NewDatabase initializes a database for the given username and passphrase:
// a root directory, fresh file KDF parameters, and derived master and
// network keys. Network key derivation takes a long time with the default
// cost factors.
func NewDatabase(username, passphrase string) (*Database, error) {
	return NewDatabaseWithParams(username, passphrase,
		fortresscrypto.NewFileKdfParameters(), fortresscrypto.DefaultNetworkScryptParams())
}

func NewDatabaseWithParams(username, passphrase string, fileParams fortresscrypto.FileKdfParameters, netParams fortresscrypto.NetworkScryptParams) (*Database, error) {
	fileSuite, err := fortresscrypto.DeriveFileKeySuite([]byte(passphrase), fileParams)
	if err != nil {
		return nil, err
	}
	networkSuite, err := fortresscrypto.DeriveNetworkKeySuite([]byte(username), []byte(passphrase), netParams)
	if err != nil {
		return nil, err
	}

	db := &Database{
		objects:      NewObjectMap(),
		username:     username,
		networkSuite: networkSuite,
		loginId:      fortresscrypto.HashUsernameForLogin([]byte(username)),
		fileSuite:    fileSuite,
	}
	db.objects.Update(DirectoryObject(NewRootDirectory()))
	return db, nil
}

// now returns the current unix timestamp, clamped to never run backwards.
func (db *Database) now() int64 {
	t := time.Now().Unix()
	if t < db.lastTime {
		t = db.lastTime
	}
	db.lastTime = t
	return t
}

func (db *Database) Username() string {
	return db.username
}

// LoginCredentials returns the account identifier and proof-of-possession
// key used by sync transports.
func (db *Database) LoginCredentials() (fortresscrypto.LoginId, fortresscrypto.LoginKey) {
	return db.loginId, db.networkSuite.LoginKey
}

// syncParameters is the serialized form of the username and cached network
// keys.
type syncParameters struct {
	Username        string                          `json:"username"`
	NetworkKeySuite *fortresscrypto.NetworkKeySuite `json:"network_key_suite"`
}

type databaseDocument struct {
	Objects       *ObjectMap     `json:"objects"`
	RootDirectory ID             `json:"root_directory"`
	SyncParams    syncParameters `json:"sync_parameters"`
	SyncURL       string         `json:"sync_url,omitempty"`
}

// Save encodes the database into a version 2 container.
func (db *Database) Save() ([]byte, error) {
	payload, err := json.Marshal(databaseDocument{
		Objects:       db.objects,
		RootDirectory: RootID,
		SyncParams:    syncParameters{Username: db.username, NetworkKeySuite: db.networkSuite},
		SyncURL:       db.syncURL,
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := fortresscrypto.EncryptToFile(&buf, payload, db.fileSuite); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Open decrypts a container with the supplied passphrase. Authentication
// failure surfaces as ErrWrongPassphrase; damaged containers surface as
// ErrCorruption. A legacy version 1 container opens read-compatibly and is
// written back as version 2 on the next save.
func Open(data []byte, passphrase string) (*Database, error) {
	return openWithParams(data, passphrase, fortresscrypto.NewFileKdfParameters())
}

// openWithParams lets the version 1 upgrade path derive its replacement
// file keys from explicit parameters.
func openWithParams(data []byte, passphrase string, upgradeParams fortresscrypto.FileKdfParameters) (*Database, error) {
	payload, fileSuite, err := fortresscrypto.DecryptFromFile(bytes.NewReader(data), []byte(passphrase))
	if err != nil {
		return nil, translateContainerError(err)
	}

	if fileSuite == nil {
		fileSuite, err = fortresscrypto.DeriveFileKeySuite([]byte(passphrase), upgradeParams)
		if err != nil {
			return nil, err
		}
	}

	var doc databaseDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed payload", ErrCorruption)
	}
	if doc.Objects == nil || doc.SyncParams.NetworkKeySuite == nil {
		return nil, fmt.Errorf("%w: incomplete payload", ErrCorruption)
	}
	root, ok := doc.Objects.Get(RootID)
	if !ok || root.Directory == nil {
		return nil, fmt.Errorf("%w: missing root directory", ErrCorruption)
	}

	return &Database{
		objects:      doc.Objects,
		username:     doc.SyncParams.Username,
		syncURL:      doc.SyncURL,
		networkSuite: doc.SyncParams.NetworkKeySuite,
		loginId:      fortresscrypto.HashUsernameForLogin([]byte(doc.SyncParams.Username)),
		fileSuite:    fileSuite,
	}, nil
}

func translateContainerError(err error) error {
	switch {
	case errors.Is(err, fortresscrypto.ErrDecryptionFailed):
		return ErrWrongPassphrase
	case errors.Is(err, fortresscrypto.ErrUnsupportedVersion):
		return ErrUnsupportedVersion
	case errors.Is(err, fortresscrypto.ErrBadChecksum),
		errors.Is(err, fortresscrypto.ErrTruncatedData),
		errors.Is(err, fortresscrypto.ErrUnknownMagic):
		return fmt.Errorf("%w: %v", ErrCorruption, err)
	default:
		return err
	}
}

// SaveToPath writes the container atomically: temp file in the same
// directory, fsync, rename.
func (db *Database) SaveToPath(path string) error {
	data, err := db.Save()
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(path, data, 0o600)
}

// LoadFromPath reads and opens a container file.
func LoadFromPath(path, passphrase string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Open(data, passphrase)
}

// Root returns a copy of the root directory.
func (db *Database) Root() *Directory {
	root, _ := db.objects.Get(RootID)
	return root.Directory.Clone()
}

// GetDirectory returns a copy of the directory with the given ID.
func (db *Database) GetDirectory(id ID) (*Directory, error) {
	o, ok := db.objects.Get(id)
	if !ok || o.Directory == nil {
		return nil, fmt.Errorf("%w: no directory %s", ErrInvalidInput, id)
	}
	return o.Directory.Clone(), nil
}

// GetEntry returns a copy of the entry with the given ID.
func (db *Database) GetEntry(id ID) (*Entry, error) {
	o, ok := db.objects.Get(id)
	if !ok || o.Entry == nil {
		return nil, fmt.Errorf("%w: no entry %s", ErrInvalidInput, id)
	}
	return o.Entry.Clone(), nil
}

// ListDirectories returns copies of every directory, in ID order.
func (db *Database) ListDirectories() []*Directory {
	var out []*Directory
	for _, id := range db.objects.Ids() {
		if o, _ := db.objects.Get(id); o.Directory != nil {
			out = append(out, o.Directory.Clone())
		}
	}
	return out
}

// ListEntries returns copies of every entry, in ID order.
func (db *Database) ListEntries() []*Entry {
	var out []*Entry
	for _, id := range db.objects.Ids() {
		if o, _ := db.objects.Get(id); o.Entry != nil {
			out = append(out, o.Entry.Clone())
		}
	}
	return out
}

// RenameDirectory appends a Rename event with the current time.
func (db *Database) RenameDirectory(id ID, name string) error {
	o, ok := db.objects.Get(id)
	if !ok || o.Directory == nil {
		return fmt.Errorf("%w: no directory %s", ErrInvalidInput, id)
	}
	o.Directory.rename(db.now(), name)
	return nil
}

// NewDirectory creates a directory with a fresh ID, names it, and adds it
// to the root directory.
func (db *Database) NewDirectory(name string) (ID, error) {
	t := db.now()
	dir := NewDirectory()
	dir.rename(t, name)
	db.objects.Update(DirectoryObject(dir))

	root, _ := db.objects.Get(RootID)
	root.Directory.addChild(t, dir.Id)
	return dir.Id, nil
}

// MoveObject removes id from every directory that currently holds it and
// adds it to newParent, all at one timestamp.
func (db *Database) MoveObject(id, newParent ID) error {
	if id == RootID {
		return fmt.Errorf("%w: cannot move the root directory", ErrInvalidInput)
	}
	if id == newParent {
		return fmt.Errorf("%w: cannot move %s into itself", ErrInvalidInput, id)
	}
	if _, ok := db.objects.Get(id); !ok {
		return fmt.Errorf("%w: no object %s", ErrInvalidInput, id)
	}
	parent, ok := db.objects.Get(newParent)
	if !ok || parent.Directory == nil {
		return fmt.Errorf("%w: no directory %s", ErrInvalidInput, newParent)
	}

	t := db.now()
	for _, dirId := range db.objects.Ids() {
		o, _ := db.objects.Get(dirId)
		if o.Directory != nil && o.Directory.HasChild(id) {
			o.Directory.removeChild(t, id)
		}
	}
	parent.Directory.addChild(t, id)
	return nil
}

// EditEntry appends an event with the given data to the entry. With a nil
// id a fresh entry is created and added to parent. Values set fields;
// explicit nil values remove them.
func (db *Database) EditEntry(id *ID, data map[string]*string, parent ID) (ID, error) {
	t := db.now()

	if id == nil {
		parentObj, ok := db.objects.Get(parent)
		if !ok || parentObj.Directory == nil {
			return ID{}, fmt.Errorf("%w: no directory %s", ErrInvalidInput, parent)
		}
		entry := NewEntry(t)
		entry.edit(t, data)
		db.objects.Update(EntryObject(entry))
		parentObj.Directory.addChild(t, entry.Id)
		return entry.Id, nil
	}

	o, ok := db.objects.Get(*id)
	if !ok || o.Entry == nil {
		return ID{}, fmt.Errorf("%w: no entry %s", ErrInvalidInput, *id)
	}
	o.Entry.edit(t, data)
	return *id, nil
}

// ChangePassphrase regenerates the file KDF salt and rederives the master
// and network keys. Network derivation is as expensive as on creation.
func (db *Database) ChangePassphrase(username, passphrase string) error {
	return db.changePassphraseWithParams(username, passphrase,
		fortresscrypto.NewFileKdfParameters(), fortresscrypto.DefaultNetworkScryptParams())
}

func (db *Database) changePassphraseWithParams(username, passphrase string, fileParams fortresscrypto.FileKdfParameters, netParams fortresscrypto.NetworkScryptParams) error {
	fileSuite, err := fortresscrypto.DeriveFileKeySuite([]byte(passphrase), fileParams)
	if err != nil {
		return err
	}
	networkSuite, err := fortresscrypto.DeriveNetworkKeySuite([]byte(username), []byte(passphrase), netParams)
	if err != nil {
		return err
	}

	db.username = username
	db.fileSuite = fileSuite
	db.networkSuite = networkSuite
	db.loginId = fortresscrypto.HashUsernameForLogin([]byte(username))
	return nil
}

// SetSyncURL validates and stores the sync server URL.
func (db *Database) SetSyncURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: bad sync url %q", ErrInvalidInput, rawURL)
	}
	db.syncURL = rawURL
	return nil
}

func (db *Database) SyncURL() string {
	return db.syncURL
}

// Validate strictly checks that every materialized child of every directory
// exists in the object map. Sync tolerates dangling references while
// downloads are in flight; Validate is for callers that want the tree
// closed over.
func (db *Database) Validate() error {
	var missing []ID
	for _, id := range db.objects.Ids() {
		o, _ := db.objects.Get(id)
		if o.Directory == nil {
			continue
		}
		for _, child := range o.Directory.ChildIds() {
			if _, ok := db.objects.Get(child); !ok {
				missing = append(missing, child)
			}
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i].Less(missing[j]) })
		return fmt.Errorf("%w: directory references unknown object %s", ErrInvalidInput, missing[0])
	}
	return nil
}
