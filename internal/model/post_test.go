package model

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestPostSchema_UnboundedTextColumns(t *testing.T) {
	post, err := schema.Parse(&Post{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)
	tag, err := schema.Parse(&PostTag{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	// 标题与标签不设长度上限，超长输入不能变成存储错误
	assert.Equal(t, schema.DataType("text"), post.LookUpField("Title").DataType)
	assert.Equal(t, schema.DataType("text"), post.LookUpField("Content").DataType)
	assert.Equal(t, schema.DataType("text"), tag.LookUpField("Tag").DataType)
}

func TestPost_Validation(t *testing.T) {
	p := &Post{Title: "  " + strings.Repeat("t", 1000) + "  ", Content: "c"}
	require.NoError(t, p.BeforeSave(nil))
	assert.Len(t, p.Title, 1000)

	assert.Error(t, (&Post{Title: "   ", Content: "c"}).BeforeSave(nil))
	assert.Error(t, (&Post{Title: "t", Content: "c", Summary: strings.Repeat("s", 301)}).BeforeSave(nil))
}

func TestTagRowsOf(t *testing.T) {
	rows := TagRowsOf("p1", []string{" Go ", strings.Repeat("X", 200)})
	require.Len(t, rows, 2)
	assert.Equal(t, PostTag{PostID: "p1", Position: 0, Tag: "go"}, rows[0])
	assert.Equal(t, strings.Repeat("x", 200), rows[1].Tag)
}
