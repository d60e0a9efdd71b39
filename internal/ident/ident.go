// Package ident generates identifiers for uploaded objects.
package ident

import "github.com/google/uuid"

// Generator 产出对象标识符，测试中可注入固定序列。
type Generator interface {
	Generate() string
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func() string

// Generate makes GeneratorFunc satisfy Generator.
func (f GeneratorFunc) Generate() string {
	return f()
}

// UUID 生成随机 UUIDv4 字符串（小写连字符形式），不检查与已有对象冲突。
type UUID struct{}

// Generate 返回新的 UUIDv4。
func (UUID) Generate() string {
	return uuid.NewString()
}
