package fortresscrypto

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/scrypt"
)

// Network scrypt parameters are deliberately aggressive. Deriving network
// keys takes minutes on a typical machine; the result is cached in the
// database so it only happens when the username or passphrase changes.
const (
	NetworkScryptLogN uint8  = 20
	NetworkScryptR    uint32 = 8
	NetworkScryptP    uint32 = 128
)

// Fixed key used to derive the network scrypt salt from the username, so the
// salt is unique to this application.
var networkUsernameSalt = mustHex("51c3d00bde2b3258ca179272153ed0fd2e475604da14bac2b7a3b9bcb0504fba")

// Fixed key used to hash the username for login. The server only ever sees
// the hash, never the username itself.
var loginUsernameSalt = mustHex("87650906efda47657a1f95368f7af711c0d10e514735443c0bdca46e1181aac4")

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// LoginId identifies an account to the sync server.
type LoginId [32]byte

func (id LoginId) String() string {
	return hex.EncodeToString(id[:])
}

// LoginKey proves possession of an account to the sync server.
type LoginKey [32]byte

// HashUsernameForLogin derives the LoginId sent to the server in place of
// the username.
func HashUsernameForLogin(username []byte) LoginId {
	var id LoginId
	copy(id[:], hmac512(loginUsernameSalt, username)[:32])
	return id
}

// passphraseDerive runs scrypt with N = 1<<logN over the given salt and
// passphrase, producing length bytes of keying material.
func passphraseDerive(salt, passphrase []byte, logN uint8, r, p uint32, length int) ([]byte, error) {
	// scrypt.Key divides by r and p, so zero values must be rejected here.
	if r == 0 || p == 0 {
		return nil, ErrBadScryptParameters
	}
	key, err := scrypt.Key(passphrase, salt, 1<<int(logN), int(r), int(p), length)
	if err != nil {
		return nil, ErrBadScryptParameters
	}
	return key, nil
}

// FileKdfParameters are the scrypt parameters stored in the container header.
type FileKdfParameters struct {
	LogN uint8
	R    uint32
	P    uint32
	Salt [32]byte
}

// NewFileKdfParameters returns the default file parameters with a fresh
// random salt. A fresh salt is picked on every passphrase change.
func NewFileKdfParameters() FileKdfParameters {
	params := FileKdfParameters{LogN: 18, R: 8, P: 1}
	copy(params.Salt[:], RandBytes(32))
	return params
}

// FileKeySuite holds the encryption keys for the on-disk container together
// with the parameters they were derived from.
type FileKeySuite struct {
	keys   SivEncryptionKeys
	Params FileKdfParameters
}

// DeriveFileKeySuite derives the container keys from a passphrase.
func DeriveFileKeySuite(passphrase []byte, params FileKdfParameters) (*FileKeySuite, error) {
	raw, err := passphraseDerive(params.Salt[:], passphrase, params.LogN, params.R, params.P, SivEncryptionKeysSize)
	if err != nil {
		return nil, err
	}
	keys, err := NewSivEncryptionKeys(raw)
	if err != nil {
		return nil, err
	}
	return &FileKeySuite{keys: *keys, Params: params}, nil
}

func (s *FileKeySuite) encryptPayload(plaintext []byte) (SIV, []byte) {
	return s.keys.Encrypt(nil, plaintext)
}

func (s *FileKeySuite) decryptPayload(siv SIV, ciphertext []byte) ([]byte, error) {
	return s.keys.Decrypt(nil, siv, ciphertext)
}

// NetworkScryptParams lets callers substitute cheaper cost factors.
// Production code always passes DefaultNetworkScryptParams.
type NetworkScryptParams struct {
	LogN uint8
	R    uint32
	P    uint32
}

func DefaultNetworkScryptParams() NetworkScryptParams {
	return NetworkScryptParams{LogN: NetworkScryptLogN, R: NetworkScryptR, P: NetworkScryptP}
}

// NetworkKeySuite holds the keys used to encrypt objects individually for
// transport, plus the login key that authenticates to the server.
type NetworkKeySuite struct {
	Keys     SivEncryptionKeys
	LoginKey LoginKey
}

// DeriveNetworkKeySuite derives the network keys from username and
// passphrase. With the default parameters this call takes a long time to
// finish, by design of the cost factors.
func DeriveNetworkKeySuite(username, passphrase []byte, params NetworkScryptParams) (*NetworkKeySuite, error) {
	salt := hmac512(networkUsernameSalt, username)[:32]

	raw, err := passphraseDerive(salt, passphrase, params.LogN, params.R, params.P, SivEncryptionKeysSize+32)
	if err != nil {
		return nil, err
	}

	keys, err := NewSivEncryptionKeys(raw[:SivEncryptionKeysSize])
	if err != nil {
		return nil, err
	}

	suite := &NetworkKeySuite{Keys: *keys}
	copy(suite.LoginKey[:], raw[SivEncryptionKeysSize:])
	return suite, nil
}

// EncryptObject encrypts one object's payload for transport, binding it to
// the object id.
func (s *NetworkKeySuite) EncryptObject(id, payload []byte) (SIV, []byte) {
	return s.Keys.Encrypt(id, payload)
}

// DecryptObject decrypts a transported object, verifying that it was
// encrypted under the same id.
func (s *NetworkKeySuite) DecryptObject(id []byte, siv SIV, ciphertext []byte) ([]byte, error) {
	return s.Keys.Decrypt(id, siv, ciphertext)
}

type networkKeySuiteJSON struct {
	EncryptionKeys SivEncryptionKeys `json:"encryption_keys"`
	LoginKey       string            `json:"login_key"`
}

func (s NetworkKeySuite) MarshalJSON() ([]byte, error) {
	return json.Marshal(networkKeySuiteJSON{
		EncryptionKeys: s.Keys,
		LoginKey:       hex.EncodeToString(s.LoginKey[:]),
	})
}

func (s *NetworkKeySuite) UnmarshalJSON(data []byte) error {
	var raw networkKeySuiteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	key, err := hex.DecodeString(raw.LoginKey)
	if err != nil || len(key) != len(s.LoginKey) {
		return ErrDecryptionFailed
	}
	s.Keys = raw.EncryptionKeys
	copy(s.LoginKey[:], key)
	return nil
}
