package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"

	"captiond/internal/common/fsutil"
)

// FetchConfig holds the remote-source settings used by modelfetch.
type FetchConfig struct {
	HFHome     string `env:"HF_HOME" env-default:"~/.cache/huggingface" env-description:"Hugging Face cache root"`
	HFEndpoint string `env:"HF_ENDPOINT" env-default:"https://huggingface.co" env-description:"Hugging Face hub base URL"`

	OSSEndpoint        string `env:"OSS_ENDPOINT" env-description:"Aliyun OSS endpoint for oss:// repositories"`
	OSSAccessKeyID     string `env:"OSS_ACCESS_KEY_ID" env-description:"Aliyun OSS access key id"`
	OSSAccessKeySecret string `env:"OSS_ACCESS_KEY_SECRET" env-description:"Aliyun OSS access key secret"`
}

// LoadFetch reads FetchConfig from the environment and expands HF_HOME.
func LoadFetch() (FetchConfig, error) {
	var fc FetchConfig
	if err := cleanenv.ReadEnv(&fc); err != nil {
		return fc, fmt.Errorf("read env: %w", err)
	}
	home, err := fsutil.ExpandHome(fc.HFHome)
	if err != nil {
		return fc, err
	}
	fc.HFHome = home
	return fc, nil
}
