package config

import "strings"

// Classifier decides whether a name still looks obfuscated. It is used for
// display only and never affects descriptors.
type Classifier struct {
	classPrefixes  []string
	methodPrefixes []string
	fieldPrefixes  []string
}

// Classifier returns the classifier configured by c.
func (c *Config) Classifier() Classifier {
	return Classifier{
		classPrefixes:  c.ClassPrefixes,
		methodPrefixes: c.MethodPrefixes,
		fieldPrefixes:  c.FieldPrefixes,
	}
}

// IsClassObfuscated tests the simple name of a binary class name.
func (c Classifier) IsClassObfuscated(name string) bool {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return hasAnyPrefix(name, c.classPrefixes)
}

// IsMethodObfuscated tests a method name.
func (c Classifier) IsMethodObfuscated(name string) bool {
	return hasAnyPrefix(name, c.methodPrefixes)
}

// IsFieldObfuscated tests a field name.
func (c Classifier) IsFieldObfuscated(name string) bool {
	return hasAnyPrefix(name, c.fieldPrefixes)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
