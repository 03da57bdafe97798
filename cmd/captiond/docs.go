package main

// General API documentation for swaggo. Run `swag init -g cmd/captiond/docs.go` to regenerate docs.
//
// @title           captiond API
// @version         1.0
// @description     On-demand image captioning with a vision-language model that is unloaded when idle.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
