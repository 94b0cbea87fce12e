package models

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserInfo is the public view of an account.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// MessageResponse is the generic body for acknowledgements and failures.
type MessageResponse struct {
	Message string `json:"message"`
}

// NotificationTypes selects which events a user is notified about.
type NotificationTypes struct {
	DeviceStatus bool `json:"deviceStatus"`
	Energy       bool `json:"energy"`
	Security     bool `json:"security"`
}

// NotificationSettings are a user's notification preferences.
type NotificationSettings struct {
	Email bool              `json:"email"`
	Push  bool              `json:"push"`
	Types NotificationTypes `json:"types"`
}

// SystemSettings are a user's display preferences.
type SystemSettings struct {
	TemperatureUnit string `json:"temperatureUnit"`
	Timezone        string `json:"timezone"`
	Theme           string `json:"theme"`
}

// APISettings hold a user's integration credentials.
type APISettings struct {
	Key        string `json:"key"`
	WebhookURL string `json:"webhookUrl"`
}

// Settings is the body of GET /api/settings.
type Settings struct {
	Name          string               `json:"name"`
	Email         string               `json:"email"`
	Notifications NotificationSettings `json:"notifications"`
	System        SystemSettings       `json:"system"`
	API           APISettings          `json:"api"`
	MonthlyBudget float64              `json:"monthlyBudget"`
}

// ProfileUpdate is the body of POST /api/settings/profile. The password
// only changes when both passwords are given.
type ProfileUpdate struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Efficiency scores run from 0 to 100.
type Efficiency struct {
	Lighting int `json:"lighting"`
	HVAC     int `json:"hvac"`
	Overall  int `json:"overall"`
}

// Consumption splits the current draw, in watts, into what the home needs
// and what could be saved.
type Consumption struct {
	Current  float64 `json:"current"`
	Baseline float64 `json:"baseline"`
	Extra    float64 `json:"extra"`
}

// EnergyAnalysis scores the current state and suggests changes.
type EnergyAnalysis struct {
	Efficiency       Efficiency  `json:"efficiency"`
	Warnings         []string    `json:"warnings"`
	Recommendations  []string    `json:"recommendations"`
	Consumption      Consumption `json:"consumption"`
	PotentialSavings float64     `json:"potentialSavings"` // $/h
}

// BudgetLevel grades a monthly projection against the user's budget.
type BudgetLevel string

const (
	BudgetUnset    BudgetLevel = "unset"
	BudgetOK       BudgetLevel = "ok"
	BudgetWarning  BudgetLevel = "warning"
	BudgetExceeded BudgetLevel = "exceeded"
)

// BudgetStatus compares the projected monthly cost with a budget.
type BudgetStatus struct {
	MonthlyBudget float64     `json:"monthlyBudget"`
	Projected     float64     `json:"projected"`
	Percent       float64     `json:"percent"`
	Level         BudgetLevel `json:"level"`
	Message       string      `json:"message"`
}

// BudgetUpdate is the body of POST /api/settings/budget.
type BudgetUpdate struct {
	MonthlyBudget float64 `json:"monthlyBudget"`
}

// Analytics is the body of GET /api/analytics. Devices maps each device to
// 1 when it is on and 0 otherwise; Watts holds each device's draw.
type Analytics struct {
	Energy      Energy             `json:"energy"`
	Devices     map[string]int     `json:"devices"`
	Watts       map[string]float64 `json:"watts"`
	Temperature float64            `json:"temperature"`
	Humidity    float64            `json:"humidity"`
	HourlyCost  float64            `json:"cost"`
	Analysis    EnergyAnalysis     `json:"analysis"`
	Budget      BudgetStatus       `json:"budget"`
}
