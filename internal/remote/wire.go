package remote

// Wire representations exchanged with the booking API. Field names follow the
// API's JSON. Optional fields are pointers so "absent" survives a round trip.
// Only structural presence is validated: dates, times and e-mail addresses are
// opaque strings, since servers answer in more than one format.

// Appointment is the wire form of an appointment ("cita").
type Appointment struct {
	ID               int64   `json:"id"`
	PatientName      string  `json:"pacienteNombre" validate:"required"`
	PatientRUT       string  `json:"pacienteRut" validate:"required"`
	ProfessionalID   int64   `json:"profesionalId" validate:"gte=0"`
	ProfessionalName *string `json:"profesionalNombre,omitempty"`
	Specialty        *string `json:"especialidad,omitempty"`
	Date             string  `json:"fecha" validate:"required"`
	Time             string  `json:"hora" validate:"required"`
	Reason           *string `json:"motivoConsulta,omitempty"`
	// Timestamp is the booking time in Unix milliseconds; 0 means unknown.
	Timestamp int64 `json:"timestamp"`
}

// Professional is the wire form of a professional ("profesional").
type Professional struct {
	ID        int64   `json:"id"`
	Name      string  `json:"nombre" validate:"required"`
	Specialty *string `json:"especialidad,omitempty"`
	Available *bool   `json:"disponible,omitempty"`
}

// User is the wire form of a user account ("usuario").
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username" validate:"required"`
	// Password is only sent on registration and never returned.
	Password  string  `json:"password,omitempty"`
	FullName  string  `json:"nombreCompleto" validate:"required"`
	Email     string  `json:"email" validate:"required"`
	RUT       string  `json:"rut" validate:"required"`
	Role      string  `json:"rol"`
	PhotoURL  *string `json:"fotoPerfil,omitempty"`
	Phone     *string `json:"telefono,omitempty"`
	Active    *bool   `json:"activo,omitempty"`
	CreatedAt *string `json:"fechaCreacion,omitempty"`
	UpdatedAt *string `json:"fechaActualizacion,omitempty"`
}

// LoginRequest is the body of POST /api/usuarios/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the answer to a login attempt.
type LoginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"mensaje"`
	User    *User  `json:"usuario,omitempty"`
	Token   string `json:"token,omitempty"`
}

// PasswordRecoveryRequest asks the API to send a reset token to Email.
type PasswordRecoveryRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetRequest sets a new password using a reset token.
type PasswordResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"nuevaPassword" validate:"required,min=6"`
}

// MessageResponse is the generic {success, mensaje} answer, also used for
// error bodies.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"mensaje"`
}

// ExistsResponse answers the username/email verification endpoints.
type ExistsResponse struct {
	Exists bool `json:"existe"`
}

// PhotoRequest is the body of PATCH /api/usuarios/{id}/foto.
type PhotoRequest struct {
	PhotoURL string `json:"fotoPerfil" validate:"required"`
}
