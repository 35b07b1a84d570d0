// Package keyring stores secrets in the operating system keyring,
// falling back to an encrypted file on headless machines where no
// keyring daemon answers.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zalando/go-keyring"
)

// probeTimeout bounds the system keyring availability check. D-Bus
// calls can hang indefinitely when no session bus is running.
const probeTimeout = 5 * time.Second

// backend is one secret store keyed by service and user.
type backend interface {
	Set(service, user, secret string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

// KeyringManager routes secret operations to the system keyring when
// one is reachable, otherwise to the encrypted file store.
type KeyringManager struct {
	store backend
}

// NewKeyringManager probes the system keyring and picks the backend.
// keyringPath and masterPassword configure the file fallback.
func NewKeyringManager(keyringPath, masterPassword string) *KeyringManager {
	if systemKeyringAvailable() {
		return &KeyringManager{store: systemStore{}}
	}
	return &KeyringManager{store: newFileStore(keyringPath, masterPassword)}
}

func (km *KeyringManager) Set(service, user, secret string) error {
	return km.store.Set(service, user, secret)
}

func (km *KeyringManager) Get(service, user string) (string, error) {
	return km.store.Get(service, user)
}

func (km *KeyringManager) Delete(service, user string) error {
	return km.store.Delete(service, user)
}

// systemKeyringAvailable writes and removes a probe entry, giving up
// after probeTimeout.
func systemKeyringAvailable() bool {
	done := make(chan error, 1)
	go func() {
		err := keyring.Set("partgen-probe", "probe", "probe")
		if err == nil {
			keyring.Delete("partgen-probe", "probe")
		}
		done <- err
	}()
	select {
	case err := <-done:
		return err == nil
	case <-time.After(probeTimeout):
		return false
	}
}

// systemStore delegates to the operating system keyring.
type systemStore struct{}

func (systemStore) Set(service, user, secret string) error {
	return keyring.Set(service, user, secret)
}

func (systemStore) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}

func (systemStore) Delete(service, user string) error {
	return keyring.Delete(service, user)
}

// fileStore keeps secrets in one JSON file, each value encrypted with
// AES-GCM under a key derived from the master password.
type fileStore struct {
	path string
	key  []byte
}

func newFileStore(path, masterPassword string) *fileStore {
	os.MkdirAll(filepath.Dir(path), 0o700)
	key := sha256.Sum256([]byte(masterPassword))
	return &fileStore{path: path, key: key[:]}
}

func (fs *fileStore) Set(service, user, secret string) error {
	entries, err := fs.load()
	if err != nil {
		return err
	}
	sealed, err := fs.seal(secret)
	if err != nil {
		return err
	}
	entries[entryKey(service, user)] = sealed
	return fs.save(entries)
}

func (fs *fileStore) Get(service, user string) (string, error) {
	entries, err := fs.load()
	if err != nil {
		return "", err
	}
	sealed, ok := entries[entryKey(service, user)]
	if !ok {
		return "", fmt.Errorf("no stored secret for %s/%s", service, user)
	}
	return fs.open(sealed)
}

func (fs *fileStore) Delete(service, user string) error {
	entries, err := fs.load()
	if err != nil {
		return err
	}
	if _, ok := entries[entryKey(service, user)]; !ok {
		return nil
	}
	delete(entries, entryKey(service, user))
	return fs.save(entries)
}

func entryKey(service, user string) string {
	return service + ":" + user
}

// load reads the entry map; a missing file is an empty keyring.
func (fs *fileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading keyring file: %w", err)
	}
	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error parsing keyring file: %w", err)
	}
	return entries, nil
}

func (fs *fileStore) save(entries map[string]string) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(fs.path, data, 0o600)
}

// seal encrypts a secret and encodes nonce plus ciphertext as base64.
func (fs *fileStore) seal(secret string) (string, error) {
	block, err := aes.NewCipher(fs.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, []byte(secret), nil)), nil
}

// open reverses seal.
func (fs *fileStore) open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(fs.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("keyring entry is truncated")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	secret, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

// GetMasterPasswordFromEnv reads the file store's master password,
// falling back to a fixed development password so headless runs work
// without configuration.
func GetMasterPasswordFromEnv() string {
	if password := os.Getenv("PARTGEN_KEYRING_PASSWORD"); password != "" {
		return password
	}
	return "partgen-development-master-key"
}

// GetDefaultKeyringPath returns the file store location, honoring the
// PARTGEN_KEYRING_PATH override.
func GetDefaultKeyringPath() string {
	if path := os.Getenv("PARTGEN_KEYRING_PATH"); path != "" {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/partgen-keyring.json"
	}
	return filepath.Join(homeDir, ".local", "share", "partgen", "keyring.json")
}
