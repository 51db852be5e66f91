package main

import "farmmarket/internal/app"

// @title           FarmMarket Auth API
// @version         1.0
// @description     Вход по мобильному номеру через одноразовый SMS-код.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
