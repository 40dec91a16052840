package artifact

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/felloworks/wheelwright/internal/errors"
)

// computeDigests fills the digest fields from the file contents in one
// pass. These are the three digests the legacy upload API accepts.
func (a *Artifact) computeDigests() error {
	f, err := os.Open(a.Path)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "opening artifact for hashing").
			WithContext("file", a.Name).
			Build()
	}
	defer f.Close()

	sha := sha256.New()
	md := md5.New()
	blake, err := blake2b.New256(nil)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "initializing blake2b").Build()
	}

	if _, err := io.Copy(io.MultiWriter(sha, md, blake), f); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "hashing artifact").
			WithContext("file", a.Name).
			Build()
	}

	a.SHA256 = hex.EncodeToString(sha.Sum(nil))
	a.MD5 = hex.EncodeToString(md.Sum(nil))
	a.Blake2b256 = hex.EncodeToString(blake.Sum(nil))
	return nil
}
