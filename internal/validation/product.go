package validation

// ProductSpec holds the bounds every product field must respect.
var ProductSpec = Spec{
	{Name: "name", Kind: String, Checks: []Check{NotEmpty("name"), MaxLength("name", 100)}},
	{Name: "category", Kind: String, Checks: []Check{NotEmpty("category"), MaxLength("category", 50)}},
	{Name: "price", Kind: Number, Checks: []Check{NotEmpty("price"), Min("price", 0)}},
	{Name: "stock", Kind: Integer, Checks: []Check{NotEmpty("stock"), Min("stock", 0)}},
	{Name: "brand", Kind: String, Checks: []Check{NotEmpty("brand"), MaxLength("brand", 50)}},
}

// LoginSpec validates login bodies.
var LoginSpec = Spec{
	{Name: "username", Kind: String, Checks: []Check{NotEmpty("username")}},
	{Name: "password", Kind: String, Checks: []Check{NotEmpty("password")}},
}
