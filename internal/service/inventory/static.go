// Package inventory содержит провайдеры остатков для проверки перед оплатой.
package inventory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// StaticProvider - конфигурируемый провайдер остатков для разработки и тестов.
// Товар без складской записи считается доступным.
type StaticProvider struct {
	mu    sync.RWMutex
	stock map[string]int32
	// Err, если задана, возвращается из каждого вызова Available.
	Err error

	calls int
}

// NewStaticProvider возвращает провайдер без складских записей.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{stock: make(map[string]int32)}
}

// SetStock задаёт остаток товара на площадке.
func (p *StaticProvider) SetStock(venueID, productID string, qty int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stock[stockKey(venueID, productID)] = qty
}

// Available сравнивает запрошенное количество с остатком.
func (p *StaticProvider) Available(_ context.Context, venueID, productID string, qty int32) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Err != nil {
		return false, p.Err
	}
	onHand, tracked := p.stock[stockKey(venueID, productID)]
	if !tracked {
		return true, nil
	}
	return onHand >= qty, nil
}

// Calls возвращает число обращений к провайдеру.
func (p *StaticProvider) Calls() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calls
}

func stockKey(venueID, productID string) string {
	return venueID + "/" + productID
}

var _ domain.InventoryStatusProvider = (*StaticProvider)(nil)
