//go:build windows

package security

import (
	"github.com/danieljoos/wincred"
)

// CredentialTarget is the Windows Credential Manager entry name for the
// index bearer token.
const CredentialTarget = "pybun_index_token"

func SaveToken(token string) error {
	cred := wincred.NewGenericCredential(CredentialTarget)
	cred.CredentialBlob = []byte(token)
	cred.Persist = wincred.PersistLocalMachine
	return cred.Write()
}

func GetToken() (string, error) {
	cred, err := wincred.GetGenericCredential(CredentialTarget)
	if err != nil {
		return "", nil
	}
	return string(cred.CredentialBlob), nil
}

func RevokeToken() error {
	cred, err := wincred.GetGenericCredential(CredentialTarget)
	if err != nil {
		return nil
	}
	return cred.Delete()
}
