package models

const (
	RoleExporter = "exporter"
	RoleCarrier  = "carrier"
	RoleEmployee = "employee"
)

// User struct matches the document in MongoDB
type User struct {
	ID          string `bson:"_id" json:"id"`
	Email       string `bson:"email" json:"email"`
	Name        string `bson:"name" json:"name"`
	CompanyName string `bson:"companyName,omitempty" json:"companyName"`
	Role        string `bson:"role" json:"role"`
	Status      string `bson:"status" json:"status"`
}

// DisplayName prefers the company name, which is what carriers bid under.
func (u User) DisplayName() string {
	if u.CompanyName != "" {
		return u.CompanyName
	}
	return u.Name
}
