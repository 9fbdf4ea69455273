package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const CredentialsFilename = "credentials.yaml"

var ErrCredentialsRequired = errors.New("credentials file is missing and no username and password were provided")

type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Complete reports whether both username and password are set.
func (c Credentials) Complete() bool {
	return len(c.Username) > 0 && len(c.Password) > 0
}

type CredentialsFile string

func CredentialsFileFrom(dir string) CredentialsFile {
	return CredentialsFile(filepath.Join(dir, CredentialsFilename))
}

// Resolve returns the stored credentials when the file exists. Otherwise the
// given credentials are persisted and returned, provided both are set.
func (f CredentialsFile) Resolve(given Credentials) (*Credentials, error) {
	stored, err := f.Read()
	if nil == err {
		return stored, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if !given.Complete() {
		return nil, ErrCredentialsRequired
	}

	if err := f.Write(given); nil != err {
		return nil, err
	}

	return &given, nil
}

func (f CredentialsFile) Read() (c *Credentials, err error) {
	file, err := os.OpenFile(f.path(), os.O_RDONLY, 0o0600)
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return nil, os.ErrNotExist
		}

		return nil, fmt.Errorf("open credentials file: %v", err)
	}
	defer func() {
		if closeErr := file.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close credentials file: %v", closeErr))
		}
	}()

	var out Credentials
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&out); nil != err {
		return nil, fmt.Errorf("decode credentials file: %v", err)
	}

	if !out.Complete() {
		return nil, fmt.Errorf("credentials file %s has no username or password", f.path())
	}

	return &out, nil
}

func (f CredentialsFile) Write(c Credentials) (err error) {
	file, err := os.OpenFile(f.path(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_SYNC, 0o0600)
	if nil != err {
		return fmt.Errorf("open credentials file: %v", err)
	}
	defer func() {
		if closeErr := file.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close credentials file: %v", closeErr))
		}
	}()

	enc := yaml.NewEncoder(file)
	if err := enc.Encode(c); nil != err {
		return fmt.Errorf("encode credentials file: %v", err)
	}

	if err := enc.Close(); nil != err {
		return fmt.Errorf("flush credentials file: %v", err)
	}

	return nil
}

func (f CredentialsFile) Remove() error {
	if err := os.Remove(f.path()); nil != err && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials file: %v", err)
	}

	return nil
}

func (f CredentialsFile) path() string {
	return string(f)
}
