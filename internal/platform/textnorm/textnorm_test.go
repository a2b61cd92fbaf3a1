package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	cases := map[string]string{
		"Áo Thun Nam":     "ao thun nam",
		"Giày đá bóng":    "giay da bong",
		"ĐỒNG HỒ":         "dong ho",
		"plain ascii 123": "plain ascii 123",
		"":                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Fold(in), in)
	}
}
