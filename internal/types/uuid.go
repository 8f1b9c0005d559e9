package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex ingest_01HZX3R8Y3M1W6J1B3K0VZC6QF
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortID returns an upper-cased short id of at most n characters,
// used for human readable labels such as remote group names.
func GenerateShortID(n int) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil || n <= 0 {
		return ""
	}
	id = strings.NewReplacer("-", "", "_", "").Replace(id)
	if len(id) > n {
		id = id[:n]
	}
	return strings.ToUpper(id)
}

const (
	UUID_PREFIX_INGESTION = "ingest"
)
