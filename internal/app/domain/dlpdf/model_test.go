package dlpdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestNormalize(t *testing.T) {
	r := Request{DLNo: " jk0120200001234 "}.Normalize()
	assert.Equal(t, Request{DLNo: "JK0120200001234", Type: "type1", Blood: "O+", AddrType: "perm"}, r)

	r = Request{DLNo: "x", Type: "TYPE2", Blood: "b+", AddrType: "TEMP"}.Normalize()
	assert.Equal(t, Request{DLNo: "X", Type: "type2", Blood: "B+", AddrType: "temp"}, r)
}
