package state

import (
	"encoding/binary"
	"fmt"

	"xdao.co/attest/address"
)

// MaxNameLen bounds credential and schema names; names are derivation seeds.
const MaxNameLen = address.MaxSeedLen

// Credential is a trust anchor: an authority and the signers allowed to act for it.
type Credential struct {
	Authority         address.Address
	Name              string
	AuthorizedSigners []address.Address
}

// CheckName validates a credential or schema name.
func CheckName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalid)
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("%w: name is %d bytes, max %d", ErrInvalid, len(name), MaxNameLen)
	}
	return nil
}

// CheckSigners rejects duplicate entries. An empty set is allowed.
func CheckSigners(signers []address.Address) error {
	seen := make(map[address.Address]struct{}, len(signers))
	for _, s := range signers {
		if _, ok := seen[s]; ok {
			return fmt.Errorf("%w: duplicate signer %s", ErrInvalid, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// IsAuthorized reports whether signer may act for the credential. The
// authority is always authorized.
func (c *Credential) IsAuthorized(signer address.Address) bool {
	if signer == c.Authority {
		return true
	}
	for _, s := range c.AuthorizedSigners {
		if s == signer {
			return true
		}
	}
	return false
}

func (c *Credential) Validate() error {
	if err := CheckName(c.Name); err != nil {
		return err
	}
	return CheckSigners(c.AuthorizedSigners)
}

// CredentialSize is the stored size of a credential with the given name and signer count.
func CredentialSize(name string, signers int) int {
	return 1 + address.Size + prefixSize + len(name) + prefixSize + signers*address.Size
}

func (c *Credential) Size() int { return CredentialSize(c.Name, len(c.AuthorizedSigners)) }

func (c *Credential) MarshalBinary() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, c.Size())
	buf = append(buf, byte(DiscriminatorCredential))
	buf = append(buf, c.Authority[:]...)
	buf = appendString(buf, c.Name)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.AuthorizedSigners)))
	for _, s := range c.AuthorizedSigners {
		buf = append(buf, s[:]...)
	}
	return buf, nil
}

// UnmarshalCredential decodes credential account data.
func UnmarshalCredential(data []byte) (*Credential, error) {
	d := newDecoder(data, DiscriminatorCredential)
	c := &Credential{
		Authority:         d.address(),
		Name:              d.text(),
		AuthorizedSigners: d.addresses(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return c, nil
}
