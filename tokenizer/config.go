package tokenizer

// Config holds the tokenizer settings loaded from tokenizer_config.json
// alongside the vocabulary.
type Config struct {
	UnkToken       string `json:"unk_token"`
	PadToken       string `json:"pad_token"`
	EosToken       string `json:"eos_token"`
	BosToken       string `json:"bos_token"`
	ModelMaxLength int    `json:"model_max_length"`
	MaxLength      int    `json:"max_length"`
}

// NormalizeConfig fills in defaults for fields left empty in the config
// file.
func (c *Config) NormalizeConfig() {
	if c.UnkToken == "" {
		c.UnkToken = "<unk>"
	}
	if c.PadToken == "" {
		c.PadToken = "<pad>"
	}
	if c.EosToken == "" {
		c.EosToken = "</s>"
	}
	if c.ModelMaxLength == 0 {
		switch {
		case c.MaxLength > 0:
			c.ModelMaxLength = c.MaxLength
		default:
			c.ModelMaxLength = 512
		}
	}
}
