package shopui

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestNormalize(t *testing.T) {
	t.Run("data and resources", func(t *testing.T) {
		p := Normalize([]ResultBlock{
			{Type: BlockResource, Resource: &UIResource{URI: "ui://a"}},
			{Type: BlockText, Text: `{"products":[]}`},
			{Type: "image"},
			{Type: BlockResource, Resource: &UIResource{URI: "ui://b"}},
			{Type: BlockText, Text: `{"ignored":true}`},
		})
		assert.JSONEq(t, `{"products":[]}`, string(p.Data))
		assert.Equal(t, 1, p.TextIndex)
		assert.Equal(t, []UIResource{{URI: "ui://a"}, {URI: "ui://b"}}, p.Resources)
		assert.NoError(t, p.Err)
		assert.True(t, p.Usable())
	})

	t.Run("undecodable text keeps resources", func(t *testing.T) {
		p := Normalize([]ResultBlock{
			{Type: BlockText, Text: `{"products":`},
			{Type: BlockResource, Resource: &UIResource{URI: "ui://a"}},
		})
		assert.Nil(t, p.Data)
		assert.Equal(t, -1, p.TextIndex)
		assert.ErrorIs(t, p.Err, ErrInvalidJSON)
		assert.Len(t, p.Resources, 1)
		assert.True(t, p.Usable())
	})

	t.Run("non-object json is not data", func(t *testing.T) {
		for _, text := range []string{"null", `"hi"`, "[]", "42"} {
			p := Normalize([]ResultBlock{{Type: BlockText, Text: text}})
			assert.Nil(t, p.Data, text)
			assert.ErrorIs(t, p.Err, ErrInvalidJSON, text)
			assert.False(t, p.Usable(), text)
		}
	})

	t.Run("resource block without payload", func(t *testing.T) {
		p := Normalize([]ResultBlock{{Type: BlockResource}})
		assert.Empty(t, p.Resources)
		assert.False(t, p.Usable())
	})

	t.Run("empty", func(t *testing.T) {
		p := Normalize(nil)
		assert.Nil(t, p.Data)
		assert.NotNil(t, p.Resources)
		assert.False(t, p.Usable())
	})
}

func TestDecodeBlocks(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"type":"text","text":"{\"cart\":{}}"}`),
		json.RawMessage(`{"type":"resource","resource":"not-an-object"}`),
		json.RawMessage(`{"type":"resource","resource":{"uri":"ui://cart","mimeType":"application/json","text":"{}"}}`),
	}

	blocks, err := DecodeBlocks(raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBlock))
	require.Len(t, blocks, 2)
	assert.Equal(t, BlockText, blocks[0].Type)
	assert.Equal(t, `{"cart":{}}`, blocks[0].Text)
	require.NotNil(t, blocks[1].Resource)
	assert.Equal(t, "ui://cart", blocks[1].Resource.URI)

	blocks, err = DecodeBlocks(raw[:1])
	assert.NoError(t, err)
	assert.Len(t, blocks, 1)
}

func TestAugment(t *testing.T) {
	t.Run("adds instructions and keeps fields", func(t *testing.T) {
		in := []byte(`{"products":[{"id":1,"price":13}],"page":{"next":"abc"}}`)
		orig := string(in)

		out, ok := Augment(in, "Do not read prices.")
		require.True(t, ok)
		assert.Equal(t, orig, string(in))
		assert.Equal(t, "Do not read prices.", gjson.GetBytes(out, InstructionsKey).String())
		assert.Equal(t, `[{"id":1,"price":13}]`, gjson.GetBytes(out, "products").Raw)
		assert.Equal(t, `{"next":"abc"}`, gjson.GetBytes(out, "page").Raw)
	})

	t.Run("overwrites instructions", func(t *testing.T) {
		out, ok := Augment([]byte(`{"instructions":"old","cart":{}}`), "new")
		require.True(t, ok)
		assert.JSONEq(t, `{"instructions":"new","cart":{}}`, string(out))
	})

	for name, in := range map[string]string{
		"nil":       "",
		"invalid":   `{"a":`,
		"array":     `[1,2]`,
		"string":    `"text"`,
		"no object": `42`,
	} {
		t.Run("skips "+name, func(t *testing.T) {
			out, ok := Augment([]byte(in), "guidance")
			assert.False(t, ok)
			assert.Equal(t, in, string(out))
		})
	}

	t.Run("skips empty guidance", func(t *testing.T) {
		_, ok := Augment([]byte(`{}`), "")
		assert.False(t, ok)
	})
}

func TestWithText(t *testing.T) {
	blocks := []ResultBlock{
		{Type: BlockResource, Resource: &UIResource{URI: "ui://a"}},
		{Type: BlockText, Text: "old"},
	}

	out := WithText(blocks, 1, "new")
	assert.Equal(t, "new", out[1].Text)
	assert.Equal(t, "old", blocks[1].Text)

	same := WithText(blocks, 0, "new")
	assert.Equal(t, blocks, same)

	assert.Equal(t, blocks, WithText(blocks, 5, "new"))
	assert.Equal(t, blocks, WithText(blocks, -1, "new"))
}
