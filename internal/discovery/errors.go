package discovery

import "fmt"

// PublicKeyNotFoundError reports that no chat envelope carrying address's
// static key could be found within the indexer scan bounds.
type PublicKeyNotFoundError struct {
	Address [32]byte
}

func (e *PublicKeyNotFoundError) Error() string {
	return fmt.Sprintf("discovery: public key not found for address %x", e.Address[:4])
}
