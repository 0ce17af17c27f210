package memory_test

import (
	"testing"

	"github.com/PabloGalante/chatrelay/internal/adapters/storage/memory"
	"github.com/PabloGalante/chatrelay/internal/adapters/storage/storetest"
	"github.com/PabloGalante/chatrelay/internal/domain"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store {
		return memory.NewStore()
	})
}
