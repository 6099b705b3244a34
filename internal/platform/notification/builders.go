package notification

import "time"

const dateTimeLayout = "02/01/2006 15:04"

func strPtr(s string) *string { return &s }

func Welcome(name, email string) EmailRequest {
	return EmailRequest{
		Kind:   KindUserRegistered,
		To:     email,
		ToName: name,
		Data:   map[string]any{"nome": name, "email": email},
	}
}

func AppointmentBooked(patientName, patientEmail, doctorName string, at time.Time, roomLink string) EmailRequest {
	return EmailRequest{
		Kind:   KindAppointmentBooked,
		To:     patientEmail,
		ToName: patientName,
		Data: map[string]any{
			"nome_paciente":     patientName,
			"nome_medico":       doctorName,
			"data_hora":         at.Format(dateTimeLayout),
			"link_sala_virtual": roomLink,
		},
	}
}

func AppointmentReminder(patientName, patientEmail, doctorName string, at time.Time, roomLink string) EmailRequest {
	req := AppointmentBooked(patientName, patientEmail, doctorName, at, roomLink)
	req.Kind = KindAppointmentReminder
	return req
}

func AppointmentCanceled(patientName, patientEmail, doctorName string, at time.Time) EmailRequest {
	return EmailRequest{
		Kind:   KindAppointmentCanceled,
		To:     patientEmail,
		ToName: patientName,
		Data: map[string]any{
			"nome_paciente": patientName,
			"nome_medico":   doctorName,
			"data_hora":     at.Format(dateTimeLayout),
		},
	}
}

func ExamRequested(patientName, patientEmail, examName, doctorName, code string, prep *string) EmailRequest {
	return EmailRequest{
		Kind:   KindExamRequested,
		To:     patientEmail,
		ToName: patientName,
		Data: map[string]any{
			"nome_paciente":      patientName,
			"nome_exame":         examName,
			"nome_medico":        doctorName,
			"codigo_solicitacao": code,
			"detalhes_preparo":   prep,
		},
		Subject: strPtr(defaultSubjects[KindExamRequested]),
	}
}

func ExamResultReady(patientName, patientEmail, examName, code string) EmailRequest {
	return EmailRequest{
		Kind:   KindExamResultReady,
		To:     patientEmail,
		ToName: patientName,
		Data: map[string]any{
			"nome_paciente":      patientName,
			"nome_exame":         examName,
			"codigo_solicitacao": code,
		},
	}
}

// ExamReadyForDoctor goes to the requesting doctor; the recipient name is the
// patient's, which is what the email worker's template greets.
func ExamReadyForDoctor(doctorName, doctorEmail, patientName, examName, code string, performedAt time.Time) EmailRequest {
	return EmailRequest{
		Kind:   KindExamReadyForDoctor,
		To:     doctorEmail,
		ToName: patientName,
		Data: map[string]any{
			"nome_medico":        doctorName,
			"nome_paciente":      patientName,
			"nome_exame":         examName,
			"data_realizacao":    performedAt.Format(dateTimeLayout),
			"codigo_solicitacao": code,
		},
	}
}

func ReportReady(patientName, patientEmail, title, doctorName, crm string, issuedAt time.Time) EmailRequest {
	return EmailRequest{
		Kind:   KindReportReady,
		To:     patientEmail,
		ToName: patientName,
		Data: map[string]any{
			"nome_paciente": patientName,
			"titulo_laudo":  title,
			"nome_medico":   doctorName,
			"crm":           crm,
			"data_emissao":  issuedAt.Format(dateTimeLayout),
		},
	}
}
