package match

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"match_coordinator/internal/domain"
	"match_coordinator/internal/game"
)

// CommitValue computes the commitment a client must submit before its
// reveal: lowercase hex sha256 over move, nonce, big-endian turn
// number, match id and role. Binding turn, match and role into the
// digest stops a commit from being replayed on another turn or seat.
func CommitValue(matchID string, role domain.Role, turn int, move game.Move, nonce string) string {
	h := sha256.New()
	h.Write([]byte(move))
	h.Write([]byte(nonce))

	var t [4]byte
	binary.BigEndian.PutUint32(t[:], uint32(turn))
	h.Write(t[:])

	h.Write([]byte(matchID))
	h.Write([]byte(role))
	return hex.EncodeToString(h.Sum(nil))
}

func validCommitValue(v string) bool {
	if len(v) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(v)
	return err == nil
}
