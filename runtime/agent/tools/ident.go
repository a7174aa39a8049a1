package tools

import "strings"

// Ident is the strong type for tool identifiers presented to models.
// Identifiers are canonical strings of the form "toolset.tool" (for example
// "web.search"). Providers that restrict tool names to [a-zA-Z0-9_-] receive
// the sanitized form returned by ProviderName.
type Ident string

// String returns the string representation of the identifier.
func (id Ident) String() string {
	return string(id)
}

// Toolset returns the toolset component of the identifier.
func (id Ident) Toolset() string {
	parts := strings.Split(string(id), ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

// Tool returns the tool name component of the identifier.
func (id Ident) Tool() string {
	parts := strings.Split(string(id), ".")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// ProviderName returns the identifier with dots replaced by underscores.
func (id Ident) ProviderName() string {
	return strings.ReplaceAll(string(id), ".", "_")
}
