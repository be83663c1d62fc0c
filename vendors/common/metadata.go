package common

import "strconv"

// Metadata keys read from types.SwitchConfig.Metadata
const (
	MetaPrompt      = "prompt"       // operational prompt regexp override
	MetaErrorPrompt = "error_prompt" // CLI error marker override
	MetaLogout      = "logout"       // logout command override
	MetaEnableSNMP  = "snmp_enabled" // "false" disables the resolution walks
)

// GetMetadataString retrieves a string value from metadata with optional fallback keys.
// Keys are checked in order - first match wins.
func GetMetadataString(metadata map[string]string, keys ...string) (string, bool) {
	if metadata == nil {
		return "", false
	}
	for _, key := range keys {
		if value, ok := metadata[key]; ok {
			return value, true
		}
	}
	return "", false
}

// GetMetadataStringWithDefault retrieves a string from metadata, or returns defaultValue.
func GetMetadataStringWithDefault(metadata map[string]string, defaultValue string, keys ...string) string {
	if value, ok := GetMetadataString(metadata, keys...); ok && value != "" {
		return value
	}
	return defaultValue
}

// GetMetadataBoolWithDefault parses a boolean from metadata, or returns defaultValue
// when the key is missing or unparsable.
func GetMetadataBoolWithDefault(metadata map[string]string, defaultValue bool, keys ...string) bool {
	value, ok := GetMetadataString(metadata, keys...)
	if !ok {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
