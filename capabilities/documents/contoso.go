package documents

// Contoso returns the sample Contoso Electronics document set used by the rag scenario.
func Contoso() []Document {
	return []Document{
		{
			ID:      "DOC001",
			Title:   "Contoso Electronics Plan and Benefit Packages",
			Summary: "Information about Contoso Electronics health plans including Northwind Health Plus and Northwind Standard, their coverage details, and cost comparison.",
			Content: `Contoso Electronics offers two health plan options to employees: Northwind Health Plus and Northwind Standard.

Northwind Health Plus is a comprehensive plan providing coverage for medical, vision, and dental services. It includes prescription drug coverage, mental health and substance abuse coverage, and preventive care services. The plan covers emergency services both in-network and out-of-network, and offers coverage for hospital stays, doctor visits, lab tests, and X-rays. It covers generic, brand-name, and specialty drugs, as well as vision exams, glasses, contact lenses, dental exams, cleanings, and fillings.

Northwind Standard is a basic plan with more limited coverage. It provides coverage for medical, vision, and dental services and preventive care, but does not cover emergency services, mental health and substance abuse, or out-of-network services. It only covers doctor visits and lab tests (not hospital stays), and only covers generic and brand-name drugs (not specialty drugs). It only covers vision exams and glasses, not contact lenses or dental services beyond basic exams.

Both plans offer preventive care coverage including routine physicals, well-child visits, immunizations, mammograms, colonoscopies, and other cancer screenings.

Cost Comparison: Contoso Electronics deducts the employee's portion of healthcare costs from each paycheck, spreading the cost over the year rather than requiring a lump sum payment. The employee's portion is calculated based on the selected plan and the number of people covered.`,
		},
		{
			ID:      "DOC002",
			Title:   "Contoso Electronics Employee Handbook",
			Summary: "Company information, mission statement, core values, policies on performance reviews, workplace safety, privacy, and data security.",
			Content: `Contoso Electronics is a leader in the aerospace industry, providing advanced electronic components for both commercial and military aircraft.

Mission: To provide the highest quality aircraft components to customers while maintaining a commitment to safety and excellence.

Core Values:
1. Quality: Providing the highest quality products and services
2. Integrity: Valuing honesty, respect, and trustworthiness
3. Innovation: Encouraging creativity and new approaches
4. Teamwork: Believing collaboration leads to greater success
5. Respect: Treating all employees, customers, and partners with dignity
6. Excellence: Striving to exceed expectations
7. Accountability: Taking responsibility for actions
8. Community: Making a positive impact in communities

Performance Reviews are conducted annually and provide feedback on areas for improvement and goals for the upcoming year. They are two-way dialogues between managers and employees.

Workplace Safety is everyone's responsibility, with programs including hazard identification, training, PPE, emergency preparedness, reporting, inspections, and record keeping.

The company has a zero-tolerance policy for workplace violence and provides regular training on prevention.

Privacy Policy ensures protection of personal information, with controlled collection and secure data practices.

Data Security includes encryption requirements, access controls, regular backups, and annual security training.`,
		},
		{
			ID:      "DOC003",
			Title:   "Roles Descriptions at Contoso Electronics",
			Summary: "Comprehensive descriptions of various job roles at Contoso Electronics, including executive positions, management roles, and individual contributor positions.",
			Content: `Contoso Electronics has a structured hierarchy of roles from executive leadership to individual contributors.

Executive Leadership:
- Chief Executive Officer (CEO): Provides strategic direction and oversight to ensure long-term success and profitability.
- Chief Operating Officer (COO): Oversees day-to-day operations, develops strategies and monitors KPIs for all departments.
- Chief Financial Officer (CFO): Leads accounting, financial planning, budgeting, and risk management.
- Chief Technology Officer (CTO): Leads technology strategy, development of new products and standards, and IT infrastructure security.

Vice Presidents:
- VP of Sales: Drives sales and revenue growth, manages sales team and strategies.
- VP of Marketing: Creates and manages marketing strategies to promote products and services.
- VP of Operations: Oversees operational efficiency and customer service.
- VP of Human Resources: Develops HR strategies aligned with business objectives.
- VP of Research and Development: Leads R&D initiatives and product innovation.
- VP of Product Management: Manages product strategy and roadmap.

Directors & Managers:
- Each department has Director and Manager level positions that implement strategies, manage teams, and oversee day-to-day functions.

Individual Contributors:
- Sales Representatives: Drive sales of Contoso products and services, maintain customer relationships.
- Customer Service Representatives: Provide excellent service, address inquiries and resolve issues.`,
		},
	}
}
