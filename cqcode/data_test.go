package cqcode

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataKeepsInsertionOrder(t *testing.T) {
	as := assert.New(t)

	d := NewData("b", 1, "a", "x", "skip", nil, "c", true)
	as.Equal([]string{"b", "a", "c"}, d.Keys())

	as.Nil(d.Set("d", 2.5))
	as.Equal("x", d.Delete("a"))
	as.Equal([]string{"b", "c", "d"}, d.Keys())

	raw, err := d.MarshalJSON()
	require.NoError(t, err)
	as.Equal(`{"b":1,"c":true,"d":2.5}`, string(raw))

	back := &Data{}
	require.NoError(t, sonic.Unmarshal(raw, back))
	as.Equal(d.Keys(), back.Keys())
	as.Equal(int64(1), back.Get("b"))
	as.Equal(2.5, back.Get("d"))
}

func TestDataCoercion(t *testing.T) {
	as := assert.New(t)
	d := NewData("n", " 42 ", "f", "1.5", "yes", "YES", "bad", "maybe")

	n, err := d.Int64("n")
	as.NoError(err)
	as.Equal(int64(42), n)

	f, err := d.Float64("f")
	as.NoError(err)
	as.Equal(1.5, f)

	b, err := d.Bool("yes")
	as.NoError(err)
	as.True(b)

	_, err = d.Bool("bad")
	as.Error(err)
	_, err = d.Int64("missing")
	as.Error(err)
	as.Equal("", d.String("missing"))
}

func TestDataNilReceiver(t *testing.T) {
	as := assert.New(t)
	var d *Data

	as.Nil(d.Get("x"))
	as.Zero(d.Len())
	as.Nil(d.Keys())
	as.Empty(d.Map())
}
