package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProduct_Equal(t *testing.T) {
	a := Product{Code: "P1", Name: "Widget", Price: 9.99, Available: true}
	b := Product{Code: "P1", Name: "Other", Price: 1}
	c := Product{Code: "P2", Name: "Widget", Price: 9.99, Available: true}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestProduct_HasImage(t *testing.T) {
	assert.False(t, Product{Code: "P1"}.HasImage())
	assert.True(t, Product{Code: "P1", Image: []byte{}}.HasImage())
	assert.True(t, Product{Code: "P1", Image: []byte{0x89, 'P'}}.HasImage())
}

func TestProduct_PriceText(t *testing.T) {
	tests := []struct {
		price float32
		want  string
	}{
		{price: 9.99, want: "9.99"},
		{price: 12.5, want: "12.50"},
		{price: 0, want: "0.00"},
		{price: 1000, want: "1000.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Product{Price: tt.price}.PriceText())
	}
}
